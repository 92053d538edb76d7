package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GrowthStage tracks where a crop is in its cycle.
type GrowthStage string

const (
	GrowthSeed        GrowthStage = "seed"
	GrowthGermination GrowthStage = "germination"
	GrowthSeedling    GrowthStage = "seedling"
	GrowthVegetative  GrowthStage = "vegetative"
	GrowthFlowering   GrowthStage = "flowering"
	GrowthFruiting    GrowthStage = "fruiting"
	GrowthHarvested   GrowthStage = "harvested"
	GrowthNotPlanted  GrowthStage = "not_planted"
)

var growthStages = map[GrowthStage]bool{
	GrowthSeed: true, GrowthGermination: true, GrowthSeedling: true, GrowthVegetative: true,
	GrowthFlowering: true, GrowthFruiting: true, GrowthHarvested: true, GrowthNotPlanted: true,
}

func ValidGrowthStage(s GrowthStage) bool {
	return growthStages[s]
}

// ProductStatus is the listing state. Products are never physically removed.
type ProductStatus string

const (
	ProductActive      ProductStatus = "active"
	ProductUnavailable ProductStatus = "unavailable"
	ProductDeleted     ProductStatus = "deleted"
)

// Rating is one user's review of a product.
type Rating struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	Name      string             `bson:"name,omitempty" json:"name,omitempty"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

// Product is a crop listing owned by one farmer.
type Product struct {
	Base                 `bson:",inline"`
	Farmer               primitive.ObjectID `bson:"farmer" json:"farmer"`
	Name                 string             `bson:"name" json:"name"`
	Description          string             `bson:"description" json:"description"`
	Category             string             `bson:"category" json:"category"`
	Price                float64            `bson:"price" json:"price"`
	Unit                 string             `bson:"unit" json:"unit"`
	AvailableQuantity    float64            `bson:"available_quantity" json:"availableQuantity"`
	MinimumOrderQuantity float64            `bson:"minimum_order_quantity" json:"minimumOrderQuantity"`
	GrowthStage          GrowthStage        `bson:"growth_stage" json:"growthStage"`
	HarvestDate          *time.Time         `bson:"harvest_date,omitempty" json:"harvestDate,omitempty"`
	Images               []string           `bson:"images" json:"images"` // S3 keys
	Ratings              []Rating           `bson:"ratings" json:"ratings"`
	AverageRating        float64            `bson:"average_rating" json:"averageRating"`
	NumOfReviews         int                `bson:"num_of_reviews" json:"numOfReviews"`
	Status               ProductStatus      `bson:"status" json:"status"`
	CreatedAt            time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updated_at" json:"updatedAt"`
}

// UpsertRating adds r, replacing an earlier rating by the same user. It
// reports whether an existing rating was replaced and recomputes the
// derived fields.
func (p *Product) UpsertRating(r Rating) bool {
	replaced := false
	for i := range p.Ratings {
		if p.Ratings[i].User == r.User {
			p.Ratings[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		p.Ratings = append(p.Ratings, r)
	}
	p.RecomputeRating()
	return replaced
}

// RecomputeRating derives AverageRating and NumOfReviews from Ratings.
func (p *Product) RecomputeRating() {
	p.NumOfReviews = len(p.Ratings)
	if p.NumOfReviews == 0 {
		p.AverageRating = 0
		return
	}
	sum := 0
	for _, r := range p.Ratings {
		sum += r.Rating
	}
	p.AverageRating = math.Round(float64(sum)/float64(p.NumOfReviews)*100) / 100
}
