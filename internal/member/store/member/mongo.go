package member

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"policardmed/internal/member/models"
	id "policardmed/pkg/domain"
	"policardmed/pkg/platform/sentinel"
)

type memberDocument struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	AppID             string             `bson:"app_id"`
	PrimaryMemberName string             `bson:"primaryMemberName"`
	CPF               string             `bson:"cpf"`
	Email             string             `bson:"email"`
	Phone             string             `bson:"phone"`
	Address           string             `bson:"address"`
	PlanDetails       planDocument       `bson:"planDetails"`
	Dependents        []dependentDoc     `bson:"dependents"`
	PlanStartDate     time.Time          `bson:"planStartDate"`
	PlanEndDate       time.Time          `bson:"planEndDate"`
	PaymentStatus     string             `bson:"paymentStatus"`
	IsActive          bool               `bson:"isActive"`
	CreatedAt         time.Time          `bson:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt"`
}

type planDocument struct {
	Type          string `bson:"type"`
	NumberOfLives int    `bson:"numberOfLives"`
}

type dependentDoc struct {
	Name         string `bson:"name"`
	Relationship string `bson:"relationship"`
}

// MongoStore keeps members in the policardmed_members collection, every
// document scoped by app_id. Subscribe relies on change streams, which need a
// replica set deployment.
type MongoStore struct {
	coll  *mongo.Collection
	appID string
}

func NewMongo(db *mongo.Database, appID string) *MongoStore {
	return &MongoStore{coll: db.Collection(models.CollectionName), appID: appID}
}

// EnsureIndexes creates the unique (app_id, cpf) index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "app_id", Value: 1}, {Key: "cpf", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_app_cpf"),
	})
	if err != nil {
		return fmt.Errorf("create member indexes: %w", mongoError(err))
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, m *models.Member) (id.MemberID, error) {
	if m == nil {
		return "", sentinel.ErrInvalidState
	}
	doc := toDocument(m, s.appID)
	doc.ID = primitive.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert member: %w", mongoError(err))
	}
	return id.MemberID(doc.ID.Hex()), nil
}

func (s *MongoStore) FindByID(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	oid, err := primitive.ObjectIDFromHex(memberID.String())
	if err != nil {
		return nil, sentinel.ErrNotFound
	}
	var doc memberDocument
	err = s.coll.FindOne(ctx, bson.M{"_id": oid, "app_id": s.appID}).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("find member: %w", mongoError(err))
	}
	return doc.toModel(), nil
}

func (s *MongoStore) FindByCPF(ctx context.Context, cpf string) ([]*models.Member, error) {
	return s.find(ctx, bson.M{"app_id": s.appID, "cpf": cpf})
}

func (s *MongoStore) List(ctx context.Context) ([]*models.Member, error) {
	return s.find(ctx, bson.M{"app_id": s.appID})
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]*models.Member, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query members: %w", mongoError(err))
	}
	var docs []memberDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode members: %w", mongoError(err))
	}
	out := make([]*models.Member, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

func (s *MongoStore) Patch(ctx context.Context, memberID id.MemberID, patch models.Patch) error {
	oid, err := primitive.ObjectIDFromHex(memberID.String())
	if err != nil {
		return sentinel.ErrNotFound
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "app_id": s.appID},
		bson.M{"$set": patchFields(patch)},
	)
	if err != nil {
		return fmt.Errorf("patch member: %w", mongoError(err))
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Subscribe opens a change stream on the collection and re-reads the full
// member list after each change. The stream ends with an error snapshot if
// the change stream or a re-read fails.
func (s *MongoStore) Subscribe(ctx context.Context) (<-chan models.Snapshot, error) {
	stream, err := s.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("watch members: %w", mongoError(err))
	}
	out := make(chan models.Snapshot)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		if !s.emitSnapshot(ctx, out) {
			return
		}
		for stream.Next(ctx) {
			if !s.emitSnapshot(ctx, out) {
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			send(ctx, out, models.Snapshot{Err: fmt.Errorf("member change stream: %w", mongoError(err))})
		}
	}()
	return out, nil
}

func (s *MongoStore) emitSnapshot(ctx context.Context, out chan<- models.Snapshot) bool {
	members, err := s.List(ctx)
	if err != nil {
		if ctx.Err() == nil {
			send(ctx, out, models.Snapshot{Err: err})
		}
		return false
	}
	return send(ctx, out, models.Snapshot{Members: members})
}

func send(ctx context.Context, out chan<- models.Snapshot, snap models.Snapshot) bool {
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

func patchFields(p models.Patch) bson.M {
	set := bson.M{"updatedAt": p.UpdatedAt}
	if p.PrimaryMemberName != nil {
		set["primaryMemberName"] = *p.PrimaryMemberName
	}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Address != nil {
		set["address"] = *p.Address
	}
	if p.PlanType != nil {
		set["planDetails.type"] = string(*p.PlanType)
	}
	if p.NumberOfLives != nil {
		set["planDetails.numberOfLives"] = *p.NumberOfLives
	}
	if p.Dependents != nil {
		set["dependents"] = toDependentDocs(*p.Dependents)
	}
	if p.PaymentStatus != nil {
		set["paymentStatus"] = string(*p.PaymentStatus)
	}
	if p.IsActive != nil {
		set["isActive"] = *p.IsActive
	}
	return set
}

// mongoError maps driver errors onto store sentinels.
func mongoError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return sentinel.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return sentinel.ErrConflict
	case mongo.IsNetworkError(err), mongo.IsTimeout(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	default:
		return err
	}
}

func toDocument(m *models.Member, appID string) memberDocument {
	return memberDocument{
		AppID:             appID,
		PrimaryMemberName: m.PrimaryMemberName,
		CPF:               m.CPF,
		Email:             m.Email,
		Phone:             m.Phone,
		Address:           m.Address,
		PlanDetails:       planDocument{Type: string(m.PlanDetails.Type), NumberOfLives: m.PlanDetails.NumberOfLives},
		Dependents:        toDependentDocs(m.Dependents),
		PlanStartDate:     m.PlanStartDate,
		PlanEndDate:       m.PlanEndDate,
		PaymentStatus:     string(m.PaymentStatus),
		IsActive:          m.IsActive,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toDependentDocs(deps []models.Dependent) []dependentDoc {
	out := make([]dependentDoc, 0, len(deps))
	for _, d := range deps {
		out = append(out, dependentDoc{Name: d.Name, Relationship: d.Relationship})
	}
	return out
}

func (d memberDocument) toModel() *models.Member {
	deps := make([]models.Dependent, 0, len(d.Dependents))
	for _, dep := range d.Dependents {
		deps = append(deps, models.Dependent{Name: dep.Name, Relationship: dep.Relationship})
	}
	return &models.Member{
		ID:                id.MemberID(d.ID.Hex()),
		PrimaryMemberName: d.PrimaryMemberName,
		CPF:               d.CPF,
		Email:             d.Email,
		Phone:             d.Phone,
		Address:           d.Address,
		PlanDetails:       models.PlanDetails{Type: models.PlanType(d.PlanDetails.Type), NumberOfLives: d.PlanDetails.NumberOfLives},
		Dependents:        deps,
		PlanStartDate:     d.PlanStartDate.UTC(),
		PlanEndDate:       d.PlanEndDate.UTC(),
		PaymentStatus:     models.PaymentStatus(d.PaymentStatus),
		IsActive:          d.IsActive,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
}
