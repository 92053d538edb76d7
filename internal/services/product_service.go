package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/db"
	"agrolink/api/internal/models"
	"agrolink/api/internal/storage"
)

const productsCollection = "products"

// ProductInput is the body of POST /products.
type ProductInput struct {
	Name                 string             `json:"name" validate:"required,max=200"`
	Description          string             `json:"description" validate:"max=5000"`
	Category             string             `json:"category" validate:"required,max=100"`
	Price                float64            `json:"price" validate:"gt=0"`
	Unit                 string             `json:"unit" validate:"required,max=20"`
	AvailableQuantity    float64            `json:"availableQuantity" validate:"gte=0"`
	MinimumOrderQuantity float64            `json:"minimumOrderQuantity" validate:"gte=0"`
	GrowthStage          models.GrowthStage `json:"growthStage"`
	HarvestDate          *time.Time         `json:"harvestDate"`
}

// ProductUpdate carries the fields an owner may change. Nil means unchanged.
type ProductUpdate struct {
	Name                 *string               `json:"name" validate:"omitempty,min=1,max=200"`
	Description          *string               `json:"description" validate:"omitempty,max=5000"`
	Category             *string               `json:"category" validate:"omitempty,min=1,max=100"`
	Price                *float64              `json:"price" validate:"omitempty,gt=0"`
	Unit                 *string               `json:"unit" validate:"omitempty,min=1,max=20"`
	AvailableQuantity    *float64              `json:"availableQuantity" validate:"omitempty,gte=0"`
	MinimumOrderQuantity *float64              `json:"minimumOrderQuantity" validate:"omitempty,gte=0"`
	GrowthStage          *models.GrowthStage   `json:"growthStage"`
	HarvestDate          *time.Time            `json:"harvestDate"`
	Status               *models.ProductStatus `json:"status" validate:"omitempty,oneof=active unavailable"`
}

// ReviewInput is the body of POST /products/review/:id.
type ReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ProductFilter narrows List. Unavailable products are only listed for
// their owner.
type ProductFilter struct {
	Category           string
	Farmer             primitive.ObjectID
	Search             string
	IncludeUnavailable bool
	Limit              int64
	Page               int64
}

// ImageQueue hands uploaded images to the background normaliser.
type ImageQueue interface {
	EnqueueImage(ctx context.Context, productID primitive.ObjectID, key string) error
}

// ImageUpload is a presigned upload target for one product image.
type ImageUpload struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// IProductService defines the interface for product listing operations.
type IProductService interface {
	Create(ctx context.Context, actor Actor, in ProductInput) (*models.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error)
	FindByID(ctx context.Context, productID primitive.ObjectID) (*models.Product, error)
	Update(ctx context.Context, productID primitive.ObjectID, actor Actor, in ProductUpdate) (*models.Product, error)
	Delete(ctx context.Context, productID primitive.ObjectID, actor Actor) error
	AddReview(ctx context.Context, productID primitive.ObjectID, actor Actor, in ReviewInput) (*models.Product, error)
	CreateImageUpload(ctx context.Context, productID primitive.ObjectID, actor Actor, filename, contentType string) (*ImageUpload, error)
	ConfirmImage(ctx context.Context, productID primitive.ObjectID, actor Actor, key string) error
	AddImage(ctx context.Context, productID primitive.ObjectID, key string) error
}

type productService struct {
	db      *mongo.Database
	users   IUserService
	storage storage.IS3Storage
	images  ImageQueue
}

// NewProductService creates a product service. storage and images may be nil
// when uploads are not configured.
func NewProductService(db *mongo.Database, users IUserService, storage storage.IS3Storage, images ImageQueue) IProductService {
	return &productService{db: db, users: users, storage: storage, images: images}
}

func (s *productService) Create(ctx context.Context, actor Actor, in ProductInput) (*models.Product, error) {
	if actor.Role != models.RoleFarmer {
		return nil, apperr.Forbidden("Only farmers can list products")
	}
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}
	if in.GrowthStage == "" {
		in.GrowthStage = models.GrowthNotPlanted
	}
	if !models.ValidGrowthStage(in.GrowthStage) {
		return nil, apperr.BadRequest("Invalid growth stage")
	}

	now := time.Now().UTC()
	product := &models.Product{
		Farmer:               actor.ID,
		Name:                 strings.TrimSpace(in.Name),
		Description:          in.Description,
		Category:             strings.TrimSpace(in.Category),
		Price:                models.RoundMoney(in.Price),
		Unit:                 in.Unit,
		AvailableQuantity:    in.AvailableQuantity,
		MinimumOrderQuantity: in.MinimumOrderQuantity,
		GrowthStage:          in.GrowthStage,
		HarvestDate:          in.HarvestDate,
		Images:               []string{},
		Ratings:              []models.Rating{},
		Status:               models.ProductActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if _, err := db.InsertOne(ctx, s.db.Collection(productsCollection), product); err != nil {
		return nil, err
	}
	return product, nil
}

// List returns a page of products, newest first, with the total match count.
func (s *productService) List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	query := bson.M{"status": models.ProductActive}
	if filter.IncludeUnavailable {
		query["status"] = bson.M{"$in": []models.ProductStatus{models.ProductActive, models.ProductUnavailable}}
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if !filter.Farmer.IsZero() {
		query["farmer"] = filter.Farmer
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	collection := s.db.Collection(productsCollection)
	total, err := collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip((page - 1) * limit)
	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, total, nil
}

// FindByID finds a product that has not been deleted.
func (s *productService) FindByID(ctx context.Context, productID primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	filter := bson.M{"_id": productID, "status": bson.M{"$ne": models.ProductDeleted}}
	err := s.db.Collection(productsCollection).FindOne(ctx, filter).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, fmt.Errorf("error finding product %s: %w", productID.Hex(), err)
	}
	return &product, nil
}

func (s *productService) findOwned(ctx context.Context, productID primitive.ObjectID, actor Actor) (*models.Product, error) {
	product, err := s.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Farmer != actor.ID && !actor.IsAdmin() {
		return nil, apperr.Forbidden("You do not own this product")
	}
	return product, nil
}

func (s *productService) Update(ctx context.Context, productID primitive.ObjectID, actor Actor, in ProductUpdate) (*models.Product, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.findOwned(ctx, productID, actor); err != nil {
		return nil, err
	}

	set := bson.M{}
	if in.Name != nil {
		set["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		set["description"] = *in.Description
	}
	if in.Category != nil {
		set["category"] = strings.TrimSpace(*in.Category)
	}
	if in.Price != nil {
		set["price"] = models.RoundMoney(*in.Price)
	}
	if in.Unit != nil {
		set["unit"] = *in.Unit
	}
	if in.AvailableQuantity != nil {
		set["available_quantity"] = *in.AvailableQuantity
	}
	if in.MinimumOrderQuantity != nil {
		set["minimum_order_quantity"] = *in.MinimumOrderQuantity
	}
	if in.GrowthStage != nil {
		if !models.ValidGrowthStage(*in.GrowthStage) {
			return nil, apperr.BadRequest("Invalid growth stage")
		}
		set["growth_stage"] = *in.GrowthStage
	}
	if in.HarvestDate != nil {
		set["harvest_date"] = *in.HarvestDate
	}
	if in.Status != nil {
		set["status"] = *in.Status
	}
	if len(set) == 0 {
		return nil, apperr.BadRequest("No product fields to update")
	}
	set["updated_at"] = time.Now().UTC()

	var updated models.Product
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": productID, "status": bson.M{"$ne": models.ProductDeleted}}
	err := s.db.Collection(productsCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, fmt.Errorf("failed to update product %s: %w", productID.Hex(), err)
	}
	return &updated, nil
}

// Delete marks the product deleted. Contracts may still reference it.
func (s *productService) Delete(ctx context.Context, productID primitive.ObjectID, actor Actor) error {
	if _, err := s.findOwned(ctx, productID, actor); err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{"status": models.ProductDeleted, "updated_at": time.Now().UTC()}}
	if _, err := s.db.Collection(productsCollection).UpdateByID(ctx, productID, update); err != nil {
		return fmt.Errorf("failed to delete product %s: %w", productID.Hex(), err)
	}
	log.Printf("Product %s deleted by %s", productID.Hex(), actor.ID.Hex())
	return nil
}

// AddReview records the caller's rating, replacing an earlier one by the
// same user, and recomputes averageRating and numOfReviews. The write is
// conditional on updated_at so concurrent reviews do not overwrite each other.
func (s *productService) AddReview(ctx context.Context, productID primitive.ObjectID, actor Actor, in ReviewInput) (*models.Product, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}

	name := ""
	if user, err := s.users.FindByID(ctx, actor.ID); err == nil {
		name = user.Name
	}

	collection := s.db.Collection(productsCollection)
	var updated models.Product
	err := db.TryVersioned(ctx, func(ctx context.Context) error {
		product, err := s.FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if product.Farmer == actor.ID {
			return apperr.Forbidden("You cannot review your own product")
		}

		now := time.Now().UTC()
		product.UpsertRating(models.Rating{
			User:      actor.ID,
			Name:      name,
			Rating:    in.Rating,
			Comment:   in.Comment,
			CreatedAt: now,
		})

		filter := bson.M{"_id": productID, "updated_at": product.UpdatedAt}
		update := bson.M{"$set": bson.M{
			"ratings":        product.Ratings,
			"average_rating": product.AverageRating,
			"num_of_reviews": product.NumOfReviews,
			"updated_at":     now,
		}}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err = collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return db.ErrVersionConflict
		}
		return err
	})
	if err != nil {
		if db.IsVersionConflict(err) {
			return nil, apperr.New(http.StatusConflict, "Product was modified concurrently, please retry", err)
		}
		return nil, err
	}
	return &updated, nil
}

func (s *productService) CreateImageUpload(ctx context.Context, productID primitive.ObjectID, actor Actor, filename, contentType string) (*ImageUpload, error) {
	if s.storage == nil {
		return nil, apperr.Unavailable("Image uploads are not configured", nil)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.BadRequest("Only image uploads are allowed")
	}
	if _, err := s.findOwned(ctx, productID, actor); err != nil {
		return nil, err
	}

	url, key, err := s.storage.GeneratePresignedPutURL(ctx, actor.ID.Hex(), productID.Hex(), filename, contentType)
	if err != nil {
		return nil, apperr.Unavailable("Could not create upload URL", err)
	}
	return &ImageUpload{UploadURL: url, Key: key}, nil
}

// ConfirmImage queues an uploaded image for normalisation. The image is
// attached to the product once processed.
func (s *productService) ConfirmImage(ctx context.Context, productID primitive.ObjectID, actor Actor, key string) error {
	if s.images == nil {
		return apperr.Unavailable("Image processing is not configured", nil)
	}
	if _, err := s.findOwned(ctx, productID, actor); err != nil {
		return err
	}
	prefix := fmt.Sprintf("uploads/%s/%s/", actor.ID.Hex(), productID.Hex())
	if !strings.HasPrefix(key, prefix) {
		return apperr.BadRequest("Image key does not belong to this product")
	}
	if err := s.images.EnqueueImage(ctx, productID, key); err != nil {
		return apperr.Unavailable("Could not queue image for processing", err)
	}
	return nil
}

func (s *productService) AddImage(ctx context.Context, productID primitive.ObjectID, key string) error {
	update := bson.M{
		"$addToSet": bson.M{"images": key},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	res, err := s.db.Collection(productsCollection).UpdateByID(ctx, productID, update)
	if err != nil {
		return fmt.Errorf("failed to add image to product %s: %w", productID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
