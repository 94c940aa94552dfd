// server/internal/store/mongostore/mongostore.go
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vital-route-api-server/config"
	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/store"
)

const (
	alertsCollection   = "alerts"
	vehiclesCollection = "vehicles"
	usersCollection    = "users"
)

type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	alerts   *mongo.Collection
	vehicles *mongo.Collection
	users    *mongo.Collection
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

// Connect dials MongoDB and pings it before returning.
func Connect(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return New(client.Database(cfg.DBName)), nil
}

func New(db *mongo.Database) *Store {
	return &Store{
		client:   db.Client(),
		db:       db,
		alerts:   db.Collection(alertsCollection),
		vehicles: db.Collection(vehiclesCollection),
		users:    db.Collection(usersCollection),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Database exposes the underlying database, e.g. for dropping it in tests.
func (s *Store) Database() *mongo.Database { return s.db }

// EnsureIndexes creates the indexes backing the feed filters and unique lookups.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.alerts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "driverId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create alert indexes: %w", err)
	}
	_, err = s.vehicles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "vehicleId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create vehicle indexes: %w", err)
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

// --- Alerts ---

func (s *Store) CreateAlert(ctx context.Context, alert *models.Alert) error {
	now := s.now()
	alert.ID = primitive.NewObjectID().Hex()
	alert.CreatedAt = now
	alert.UpdatedAt = now
	alert.Version = 1

	if _, err := s.alerts.InsertOne(ctx, alert); err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

func (s *Store) GetAlert(ctx context.Context, id string) (models.Alert, error) {
	var alert models.Alert
	err := s.alerts.FindOne(ctx, bson.M{"_id": id}).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Alert{}, store.ErrNotFound
		}
		return models.Alert{}, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return alert, nil
}

func alertFilterDoc(f store.AlertFilter) bson.M {
	filter := bson.M{}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.DriverID != "" {
		filter["driverId"] = f.DriverID
	}
	return filter
}

func (s *Store) ListAlerts(ctx context.Context, f store.AlertFilter) ([]models.Alert, error) {
	order := 1
	if f.NewestFirst {
		order = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: order}})

	cursor, err := s.alerts.Find(ctx, alertFilterDoc(f), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts, nil
}

func (s *Store) UpdateAlert(ctx context.Context, id string, expectedVersion int64, patch store.AlertPatch) (models.Alert, error) {
	set := bson.M{"updatedAt": s.now()}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.DriverID != nil {
		set["driverId"] = *patch.DriverID
	}
	if patch.AssignedVehicle != nil {
		set["assignedVehicle"] = *patch.AssignedVehicle
	}
	if patch.Destination != nil {
		set["destination"] = *patch.Destination
	}

	// Only matches while nobody else has written since the caller read the alert.
	filter := bson.M{"_id": id, "version": expectedVersion}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Alert
	err := s.alerts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Alert{}, fmt.Errorf("failed to update alert %s: %w", id, err)
	}

	count, cerr := s.alerts.CountDocuments(ctx, bson.M{"_id": id})
	if cerr != nil {
		return models.Alert{}, fmt.Errorf("failed to check alert %s: %w", id, cerr)
	}
	if count == 0 {
		return models.Alert{}, store.ErrNotFound
	}
	return models.Alert{}, store.ErrConflict
}

func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	res, err := s.alerts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete alert %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Vehicles ---

func (s *Store) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	now := s.now()
	vehicle.ID = primitive.NewObjectID().Hex()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now

	if _, err := s.vehicles.InsertOne(ctx, vehicle); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to insert vehicle: %w", err)
	}
	return nil
}

func (s *Store) GetVehicle(ctx context.Context, vehicleID string) (models.Vehicle, error) {
	var v models.Vehicle
	err := s.vehicles.FindOne(ctx, bson.M{"vehicleId": vehicleID}).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Vehicle{}, store.ErrNotFound
		}
		return models.Vehicle{}, fmt.Errorf("failed to get vehicle %s: %w", vehicleID, err)
	}
	return v, nil
}

func (s *Store) ListVehicles(ctx context.Context, f store.VehicleFilter) ([]models.Vehicle, error) {
	filter := bson.M{}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "vehicleId", Value: 1}})

	cursor, err := s.vehicles.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	var vehicles []models.Vehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("failed to decode vehicles: %w", err)
	}
	if vehicles == nil {
		vehicles = []models.Vehicle{}
	}
	return vehicles, nil
}

func (s *Store) UpdateVehicleStatus(ctx context.Context, vehicleID string, expected, to models.VehicleStatus) (models.Vehicle, error) {
	filter := bson.M{"vehicleId": vehicleID}
	if expected != "" {
		filter["status"] = expected
	}
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": s.now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var v models.Vehicle
	err := s.vehicles.FindOneAndUpdate(ctx, filter, update, opts).Decode(&v)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Vehicle{}, fmt.Errorf("failed to update vehicle %s: %w", vehicleID, err)
	}
	if expected == "" {
		return models.Vehicle{}, store.ErrNotFound
	}
	count, cerr := s.vehicles.CountDocuments(ctx, bson.M{"vehicleId": vehicleID})
	if cerr != nil {
		return models.Vehicle{}, fmt.Errorf("failed to check vehicle %s: %w", vehicleID, cerr)
	}
	if count == 0 {
		return models.Vehicle{}, store.ErrNotFound
	}
	return models.Vehicle{}, store.ErrConflict
}

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = primitive.NewObjectID().Hex()
	}
	user.Email = strings.ToLower(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findUser(ctx, bson.M{"email": strings.ToLower(email)})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, store.ErrNotFound
		}
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
