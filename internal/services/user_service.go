package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/auth"
	"agrolink/api/internal/cache"
	"agrolink/api/internal/config"
	"agrolink/api/internal/db"
	"agrolink/api/internal/models"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = apperr.Conflict("Email already in use by another account")

const (
	usersCollection = "users"
	otpLength       = 6
)

// SignupInput is the body of POST /auth/signup.
type SignupInput struct {
	Name     string              `json:"name" validate:"required,max=100"`
	Email    string              `json:"email" validate:"required,email"`
	Password string              `json:"password" validate:"required"`
	Phone    string              `json:"phone" validate:"omitempty,max=20"`
	Address  string              `json:"address" validate:"max=500"`
	Role     models.Role         `json:"role" validate:"required,oneof=farmer customer"`
	Farm     *models.FarmDetails `json:"farmDetails"`
}

// ProfileUpdate carries the mutable profile fields. Email is not among them.
type ProfileUpdate struct {
	Name    *string             `json:"name" validate:"omitempty,min=1,max=100"`
	Phone   *string             `json:"phone" validate:"omitempty,max=20"`
	Address *string             `json:"address" validate:"omitempty,max=500"`
	Farm    *models.FarmDetails `json:"farmDetails"`
}

// IUserService defines the interface for user-related operations.
type IUserService interface {
	Signup(ctx context.Context, in SignupInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*models.User, error)
	ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, in ProfileUpdate) (*models.User, error)
}

// userService implements IUserService.
type userService struct {
	db       *mongo.Database
	cfg      *config.Config
	codes    cache.CodeStore
	mailer   Mailer
	password *regexp.Regexp
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database, cfg *config.Config, codes cache.CodeStore, mailer Mailer) IUserService {
	pattern := cfg.PasswordRegexp
	if pattern == "" {
		pattern = "^.{8,}$"
	}
	return &userService{
		db:       db,
		cfg:      cfg,
		codes:    codes,
		mailer:   mailer,
		password: regexp.MustCompile(pattern),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an unverified account. Farm details are only kept for farmers.
func (s *userService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}
	if !s.password.MatchString(in.Password) {
		return nil, apperr.BadRequest("Password does not meet the requirements")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Phone:        in.Phone,
		Address:      in.Address,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Role == models.RoleFarmer {
		user.Farm = in.Farm
	}

	if _, err := db.InsertOne(ctx, s.db.Collection(usersCollection), user); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("error inserting user %s: %w", user.Email, err)
	}

	log.Printf("User %s signed up as %s", user.ID.Hex(), user.Role)
	return user, nil
}

// Login checks the credentials and returns the user with a signed token.
func (s *userService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, "", apperr.Unauthorized("Invalid email or password")
		}
		return nil, "", err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", apperr.Unauthorized("Invalid email or password")
	}

	token, err := auth.GenerateJWT(user.ID, user.Role, s.cfg.JwtSecret, s.cfg.JwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// FindByID returns mongo.ErrNoDocuments when no user has the id.
func (s *userService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID.Hex(), err)
	}
	return &user, nil
}

// FindByEmail returns mongo.ErrNoDocuments when no user has the email.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	email = normalizeEmail(email)
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// SendOTP stores a fresh code for the account and queues it for email.
func (s *userService) SendOTP(ctx context.Context, email string) error {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NotFound("User not found")
		}
		return err
	}

	code, err := auth.GenerateOTP(otpLength)
	if err != nil {
		return err
	}
	if err := s.codes.Save(ctx, user.Email, code, s.cfg.OtpTTL); err != nil {
		return apperr.Unavailable("Could not store verification code", err)
	}

	// Delivery goes through the queue; a failed enqueue means the user never
	// gets the code, so it is reported.
	err = s.mailer.SendTemplate(ctx, user.Email, "otp_code", map[string]interface{}{
		"name":    user.Name,
		"otp":     code,
		"minutes": int(s.cfg.OtpTTL.Minutes()),
	})
	if err != nil {
		return apperr.Unavailable("Could not send verification code", err)
	}
	return nil
}

// VerifyOTP marks the account verified when code matches the stored one.
// The code is single use.
func (s *userService) VerifyOTP(ctx context.Context, email, code string) (*models.User, error) {
	email = normalizeEmail(email)
	stored, err := s.codes.Get(ctx, email)
	if err != nil {
		if errors.Is(err, cache.ErrCodeNotFound) {
			return nil, apperr.BadRequest("Verification code is invalid or expired")
		}
		return nil, apperr.Unavailable("Could not read verification code", err)
	}
	if stored != strings.TrimSpace(code) {
		return nil, apperr.BadRequest("Verification code is invalid or expired")
	}

	var user models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"verified": true, "updated_at": time.Now().UTC()}}
	err = s.db.Collection(usersCollection).FindOneAndUpdate(ctx, bson.M{"email": email}, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("error verifying user %s: %w", email, err)
	}

	if err := s.codes.Delete(ctx, email); err != nil {
		log.Printf("Failed to delete used OTP for %s: %v", email, err)
	}
	return &user, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword string) error {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(oldPassword, user.PasswordHash) {
		return apperr.BadRequest("Current password is incorrect")
	}
	if !s.password.MatchString(newPassword) {
		return apperr.BadRequest("Password does not meet the requirements")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{"password": hash, "updated_at": time.Now().UTC()}}
	if _, err := s.db.Collection(usersCollection).UpdateByID(ctx, userID, update); err != nil {
		return fmt.Errorf("error updating password for user %s: %w", userID.Hex(), err)
	}
	return nil
}

// UpdateProfile applies the fields present in in and returns the updated user.
func (s *userService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, in ProfileUpdate) (*models.User, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}

	set := bson.M{}
	if in.Name != nil {
		set["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		set["phone"] = *in.Phone
	}
	if in.Address != nil {
		set["address"] = *in.Address
	}
	if in.Farm != nil {
		current, err := s.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if current.Role != models.RoleFarmer {
			return nil, apperr.BadRequest("Only farmers have farm details")
		}
		set["farm"] = in.Farm
	}
	if len(set) == 0 {
		return nil, apperr.BadRequest("No profile fields to update")
	}
	set["updated_at"] = time.Now().UTC()

	var user models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.db.Collection(usersCollection).FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error updating profile of user %s: %w", userID.Hex(), err)
	}
	return &user, nil
}
