package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/db"
	"agrolink/api/internal/models"
)

const notificationsCollection = "notifications"

// NotificationInput is the body of the admin create endpoint.
type NotificationInput struct {
	User    string                  `json:"user" validate:"required"`
	Type    models.NotificationType `json:"type"`
	Title   string                  `json:"title" validate:"required,max=200"`
	Message string                  `json:"message" validate:"required,max=2000"`
	Data    map[string]interface{}  `json:"data"`
}

// INotificationService defines the interface for notification operations.
type INotificationService interface {
	Notify(ctx context.Context, userID primitive.ObjectID, ntype models.NotificationType, title, message string, data map[string]interface{}) (*models.Notification, error)
	Create(ctx context.Context, in NotificationInput) (*models.Notification, error)
	List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, limit, skip int64) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, notificationID, userID primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, notificationID, userID primitive.ObjectID) error
}

type notificationService struct {
	db          *mongo.Database
	broadcaster Broadcaster
}

func NewNotificationService(db *mongo.Database, broadcaster Broadcaster) INotificationService {
	if broadcaster == nil {
		broadcaster = NopBroadcaster()
	}
	return &notificationService{db: db, broadcaster: broadcaster}
}

// Notify stores a notification and pushes it to the user's room. The push
// is best effort.
func (s *notificationService) Notify(ctx context.Context, userID primitive.ObjectID, ntype models.NotificationType, title, message string, data map[string]interface{}) (*models.Notification, error) {
	n := &models.Notification{
		User:      userID,
		Type:      ntype,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := db.InsertOne(ctx, s.db.Collection(notificationsCollection), n); err != nil {
		return nil, err
	}

	runEffects(ctx, "notification "+n.ID.Hex(),
		newEffect("broadcast notification", func(ctx context.Context) error {
			return s.broadcaster.Broadcast(ctx, UserRoom(userID), EventNotification, n)
		}),
	)
	return n, nil
}

func (s *notificationService) Create(ctx context.Context, in NotificationInput) (*models.Notification, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}
	userID, err := primitive.ObjectIDFromHex(in.User)
	if err != nil {
		return nil, apperr.BadRequest("Invalid user id")
	}
	if in.Type == "" {
		in.Type = models.NotifyAnnouncement
	}
	return s.Notify(ctx, userID, in.Type, in.Title, in.Message, in.Data)
}

// List returns the user's notifications, newest first.
func (s *notificationService) List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, limit, skip int64) ([]models.Notification, error) {
	filter := bson.M{"user": userID}
	if unreadOnly {
		filter["read"] = false
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit).SetSkip(skip)

	cursor, err := s.db.Collection(notificationsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications of %s: %w", userID.Hex(), err)
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.db.Collection(notificationsCollection).CountDocuments(ctx, bson.M{"user": userID, "read": false})
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, userID primitive.ObjectID) error {
	res, err := s.db.Collection(notificationsCollection).UpdateOne(ctx,
		bson.M{"_id": notificationID, "user": userID},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", notificationID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("Notification not found")
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.db.Collection(notificationsCollection).UpdateMany(ctx,
		bson.M{"user": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications of %s read: %w", userID.Hex(), err)
	}
	return res.ModifiedCount, nil
}

func (s *notificationService) Delete(ctx context.Context, notificationID, userID primitive.ObjectID) error {
	res, err := s.db.Collection(notificationsCollection).DeleteOne(ctx, bson.M{"_id": notificationID, "user": userID})
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("failed to delete notification %s: %w", notificationID.Hex(), err)
	}
	if res == nil || res.DeletedCount == 0 {
		return apperr.NotFound("Notification not found")
	}
	return nil
}
