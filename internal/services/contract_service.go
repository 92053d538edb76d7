package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/config"
	"agrolink/api/internal/db"
	"agrolink/api/internal/document"
	"agrolink/api/internal/models"
	"agrolink/api/internal/storage"
)

const contractsCollection = "contracts"

// CreateContractInput is the body of POST /contracts/request.
type CreateContractInput struct {
	ProductID           string               `json:"crop" validate:"required"`
	Quantity            float64              `json:"quantity" validate:"gt=0"`
	Unit                string               `json:"unit" validate:"required,max=20"`
	PricePerUnit        float64              `json:"pricePerUnit" validate:"gt=0"`
	DeliveryDate        *time.Time           `json:"deliveryDate"`
	PaymentTerms        *models.PaymentTerms `json:"paymentTerms"`
	SpecialRequirements string               `json:"specialRequirements" validate:"max=2000"`
}

// ProgressInput is the body of POST /contracts/:id/progress.
type ProgressInput struct {
	Note   string             `json:"note" validate:"required,max=2000"`
	Stage  models.GrowthStage `json:"stage"`
	Images []string           `json:"images" validate:"max=10"`
}

// ContractFilter narrows List.
type ContractFilter struct {
	Status models.ContractStatus
	Limit  int64
	Skip   int64
}

// ContractResult is the outcome of a contract mutation: the committed
// contract and how its best-effort side effects went.
type ContractResult struct {
	Contract     *models.Contract
	CounterOffer *models.CounterOffer
	Effects      []EffectResult
}

// ContractDocumentResult is a rendered agreement.
type ContractDocumentResult struct {
	PDF      []byte
	Filename string
	Contract *models.Contract
}

// IContractService owns contract status and negotiation.
type IContractService interface {
	CreateRequest(ctx context.Context, actor Actor, in CreateContractInput) (*ContractResult, error)
	List(ctx context.Context, actor Actor, filter ContractFilter) ([]models.Contract, error)
	Get(ctx context.Context, contractID primitive.ObjectID, actor Actor) (*models.Contract, error)
	SubmitCounterOffer(ctx context.Context, contractID primitive.ObjectID, actor Actor, offer models.OfferTerms) (*ContractResult, error)
	Accept(ctx context.Context, contractID primitive.ObjectID, actor Actor) (*ContractResult, error)
	AcceptOffer(ctx context.Context, contractID primitive.ObjectID, actor Actor) (*ContractResult, error)
	UpdateStatus(ctx context.Context, contractID primitive.ObjectID, actor Actor, status models.ContractStatus, note string) (*ContractResult, error)
	AddProgressUpdate(ctx context.Context, contractID primitive.ObjectID, actor Actor, in ProgressInput) (*ContractResult, error)
	GenerateDocument(ctx context.Context, contractID primitive.ObjectID, actor Actor) (*ContractDocumentResult, error)

	// AttachPayment records a new pending payment under contract.payments[stage].
	AttachPayment(ctx context.Context, contractID primitive.ObjectID, stage models.PaymentStage, paymentID primitive.ObjectID) (*models.Contract, error)
	// SettlePayment records the final status of a stage payment and, for a
	// completed payment, moves the contract forward when it is waiting on that
	// stage. It reports whether the status changed.
	SettlePayment(ctx context.Context, contractID primitive.ObjectID, stage models.PaymentStage, paymentID primitive.ObjectID, status models.PaymentStatus) (*models.Contract, bool, error)
}

type contractService struct {
	db            *mongo.Database
	cfg           *config.Config
	users         IUserService
	products      IProductService
	notifications INotificationService
	mailer        Mailer
	broadcaster   Broadcaster
	storage       storage.IS3Storage
}

// NewContractService creates the contract service. storage may be nil, in
// which case generated documents are not archived.
func NewContractService(
	db *mongo.Database,
	cfg *config.Config,
	users IUserService,
	products IProductService,
	notifications INotificationService,
	mailer Mailer,
	broadcaster Broadcaster,
	storage storage.IS3Storage,
) IContractService {
	if mailer == nil {
		mailer = LogMailer()
	}
	if broadcaster == nil {
		broadcaster = NopBroadcaster()
	}
	return &contractService{
		db:            db,
		cfg:           cfg,
		users:         users,
		products:      products,
		notifications: notifications,
		mailer:        mailer,
		broadcaster:   broadcaster,
		storage:       storage,
	}
}

var errNotParty = apperr.Forbidden("You are not a party to this contract")

func (s *contractService) load(ctx context.Context, contractID primitive.ObjectID) (*models.Contract, error) {
	var contract models.Contract
	err := s.db.Collection(contractsCollection).FindOne(ctx, bson.M{"_id": contractID}).Decode(&contract)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("Contract not found")
		}
		return nil, fmt.Errorf("error finding contract %s: %w", contractID.Hex(), err)
	}
	return &contract, nil
}

// mutate reads the contract, lets plan build an update against that
// snapshot and applies it only if nobody else wrote in between. On a
// conflict plan runs again on a fresh read.
func (s *contractService) mutate(ctx context.Context, contractID primitive.ObjectID, plan func(c *models.Contract) (bson.M, error)) (*models.Contract, error) {
	collection := s.db.Collection(contractsCollection)
	var updated models.Contract
	err := db.TryVersioned(ctx, func(ctx context.Context) error {
		current, err := s.load(ctx, contractID)
		if err != nil {
			return err
		}
		update, err := plan(current)
		if err != nil {
			return err
		}
		return db.UpdateVersioned(ctx, collection, contractID, current.Version, update, &updated)
	})
	if err != nil {
		if db.IsVersionConflict(err) {
			return nil, apperr.New(http.StatusConflict, "Contract was modified concurrently, please retry", err)
		}
		return nil, err
	}
	return &updated, nil
}

// CreateRequest opens a contract from a buyer for one of a farmer's products.
func (s *contractService) CreateRequest(ctx context.Context, actor Actor, in CreateContractInput) (*ContractResult, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}
	terms := models.DefaultPaymentTerms()
	if in.PaymentTerms != nil {
		if err := models.Validate.Struct(in.PaymentTerms); err != nil {
			return nil, err
		}
		terms = *in.PaymentTerms
	}
	if actor.Role != models.RoleCustomer {
		return nil, apperr.Forbidden("Only buyers can request contracts")
	}
	productID, err := primitive.ObjectIDFromHex(in.ProductID)
	if err != nil {
		return nil, apperr.BadRequest("Invalid crop id")
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Status != models.ProductActive {
		return nil, apperr.NotFound("Product is not available")
	}
	if product.Farmer == actor.ID {
		return nil, apperr.BadRequest("Farmer and buyer must be different users")
	}

	now := time.Now().UTC()
	contract := &models.Contract{
		Farmer:              product.Farmer,
		Buyer:               actor.ID,
		Crop:                product.ID,
		Quantity:            in.Quantity,
		Unit:                strings.TrimSpace(in.Unit),
		PricePerUnit:        in.PricePerUnit,
		TotalAmount:         models.ComputeTotal(in.Quantity, in.PricePerUnit),
		DeliveryDate:        in.DeliveryDate,
		PaymentTerms:        terms,
		SpecialRequirements: in.SpecialRequirements,
		Status:              models.StatusRequested,
		Version:             1,
		NegotiationHistory:  []models.NegotiationEntry{},
		CounterOffers:       []models.CounterOffer{},
		ProgressUpdates:     []models.ProgressUpdate{},
		Payments: models.StagePayments{
			Advance: []models.PaymentRef{},
			Midterm: []models.PaymentRef{},
			Final:   []models.PaymentRef{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := db.InsertOne(ctx, s.db.Collection(contractsCollection), contract); err != nil {
		return nil, err
	}
	log.Printf("Contract %s requested by %s for product %s", contract.ID.Hex(), actor.ID.Hex(), product.ID.Hex())

	effects := s.announce(ctx, contract, actor.ID, models.NotifyContractRequest,
		"New contract request",
		fmt.Sprintf("You have a new contract request for %s: %g %s at %.2f per %s", product.Name, contract.Quantity, contract.Unit, contract.PricePerUnit, contract.Unit),
		"contract_request")
	return &ContractResult{Contract: contract, Effects: effects}, nil
}

// List returns the contracts the caller is a party to, newest first.
func (s *contractService) List(ctx context.Context, actor Actor, filter ContractFilter) ([]models.Contract, error) {
	query := bson.M{"$or": bson.A{bson.M{"farmer": actor.ID}, bson.M{"buyer": actor.ID}}}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit).SetSkip(filter.Skip)

	cursor, err := s.db.Collection(contractsCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer cursor.Close(ctx)

	contracts := []models.Contract{}
	if err := cursor.All(ctx, &contracts); err != nil {
		return nil, fmt.Errorf("failed to decode contracts: %w", err)
	}
	return contracts, nil
}

// Get returns the contract if the caller is its farmer or buyer. Admins are
// not parties; they reach payments through the admin payment listing.
func (s *contractService) Get(ctx context.Context, contractID primitive.ObjectID, actor Actor) (*models.Contract, error) {
	contract, err := s.load(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !contract.IsParty(actor.ID) {
		return nil, errNotParty
	}
	return contract, nil
}

// SubmitCounterOffer proposes new terms. Any pending offer is superseded and
// the contract goes to negotiating.
func (s *contractService) SubmitCounterOffer(ctx context.Context, contractID primitive.ObjectID, actor Actor, offer models.OfferTerms) (*ContractResult, error) {
	if err := offer.Validate(); err != nil {
		return nil, err
	}

	var created models.CounterOffer
	contract, err := s.mutate(ctx, contractID, func(c *models.Contract) (bson.M, error) {
		if !c.IsParty(actor.ID) {
			return nil, errNotParty
		}
		if !CanTransition(c.Status, models.StatusNegotiating) {
			return nil, apperr.BadRequest(fmt.Sprintf("Cannot negotiate a contract that is %s", c.Status))
		}

		now := time.Now().UTC()
		created = models.CounterOffer{
			ID:          primitive.NewObjectID(),
			ProposedBy:  actor.ID,
			Terms:       offer,
			TotalAmount: c.ProjectedTotal(offer),
			Status:      models.OfferPending,
			CreatedAt:   now,
		}
		offers := supersedePending(c.CounterOffers, now)
		offers = append(offers, created)

		changes := offer
		return bson.M{
			"$set": bson.M{
				"status":         models.StatusNegotiating,
				"counter_offers": offers,
			},
			"$push": bson.M{"negotiation_history": models.NegotiationEntry{
				ProposedBy: actor.ID,
				Action:     models.NegotiationProposed,
				Changes:    &changes,
				Message:    offer.Message,
				At:         now,
			}},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	effects := s.announce(ctx, contract, actor.ID, models.NotifyCounterOffer,
		"New counter-offer",
		fmt.Sprintf("A counter-offer was made on your contract: %s (total %.2f)", offer.Describe(), created.TotalAmount),
		"contract_counter_offer")
	return &ContractResult{Contract: contract, CounterOffer: &created, Effects: effects}, nil
}

// Accept is the farmer's direct acceptance. A pending offer from the buyer
// is applied; a pending offer of the farmer's own is withdrawn and the
// current terms are accepted.
func (s *contractService) Accept(ctx context.Context, contractID primitive.ObjectID, actor Actor) (*ContractResult, error) {
	contract, err := s.mutate(ctx, contractID, func(c *models.Contract) (bson.M, error) {
		if !c.IsParty(actor.ID) {
			return nil, errNotParty
		}
		if c.Farmer != actor.ID {
			return nil, apperr.Forbidden("Only the farmer can accept the contract")
		}
		if !CanTransition(c.Status, models.StatusAccepted) {
			return nil, apperr.BadRequest(fmt.Sprintf("Cannot accept a contract that is %s", c.Status))
		}
		idx := c.PendingOffer()
		if idx >= 0 && c.CounterOffers[idx].ProposedBy == actor.ID {
			idx = -1
		}
		return acceptanceUpdate(c, actor.ID, idx, time.Now().UTC()), nil
	})
	if err != nil {
		return nil, err
	}

	effects := s.announce(ctx, contract, actor.ID, models.NotifyContractAccepted,
		"Contract accepted",
		fmt.Sprintf("Your contract was accepted: %g %s for a total of %.2f", contract.Quantity, contract.Unit, contract.TotalAmount),
		"contract_accepted")
	return &ContractResult{Contract: contract, Effects: effects}, nil
}

// AcceptOffer accepts the counterparty's latest pending counter-offer.
func (s *contractService) AcceptOffer(ctx context.Context, contractID primitive.ObjectID, actor Actor) (*ContractResult, error) {
	var accepted models.CounterOffer
	contract, err := s.mutate(ctx, contractID, func(c *models.Contract) (bson.M, error) {
		if !c.IsParty(actor.ID) {
			return nil, errNotParty
		}
		idx := c.PendingOffer()
		if idx < 0 {
			return nil, apperr.BadRequest("There is no pending counter-offer to accept")
		}
		if c.CounterOffers[idx].ProposedBy == actor.ID {
			return nil, apperr.BadRequest("You cannot accept your own offer")
		}
		if !CanTransition(c.Status, models.StatusAccepted) {
			return nil, apperr.BadRequest(fmt.Sprintf("Cannot accept an offer on a contract that is %s", c.Status))
		}
		accepted = c.CounterOffers[idx]
		return acceptanceUpdate(c, actor.ID, idx, time.Now().UTC()), nil
	})
	if err != nil {
		return nil, err
	}
	accepted.Status = models.OfferAccepted

	effects := s.announce(ctx, contract, actor.ID, models.NotifyContractAccepted,
		"Offer accepted",
		fmt.Sprintf("Your offer was accepted: %g %s for a total of %.2f", contract.Quantity, contract.Unit, contract.TotalAmount),
		"contract_accepted")
	return &ContractResult{Contract: contract, CounterOffer: &accepted, Effects: effects}, nil
}

// supersedePending returns a copy of offers with every pending offer superseded.
func supersedePending(offers []models.CounterOffer, now time.Time) []models.CounterOffer {
	out := make([]models.CounterOffer, len(offers), len(offers)+1)
	copy(out, offers)
	for i := range out {
		if out[i].Status == models.OfferPending {
			out[i].Status = models.OfferSuperseded
			out[i].RespondedAt = &now
		}
	}
	return out
}

// acceptanceUpdate applies the offer at idx (none when idx < 0), closes
// every other pending offer and moves the contract to its accepted status.
func acceptanceUpdate(c *models.Contract, actorID primitive.ObjectID, idx int, now time.Time) bson.M {
	next := *c
	offers := supersedePending(c.CounterOffers, now)
	entry := models.NegotiationEntry{
		ProposedBy: actorID,
		Action:     models.NegotiationAccepted,
		At:         now,
	}
	if idx >= 0 {
		terms := c.CounterOffers[idx].Terms
		next.ApplyTerms(terms)
		offers[idx].Status = models.OfferAccepted
		offers[idx].RespondedAt = &now
		entry.Changes = &terms
	} else {
		next.TotalAmount = models.ComputeTotal(next.Quantity, next.PricePerUnit)
	}

	set := bson.M{
		"quantity":       next.Quantity,
		"price_per_unit": next.PricePerUnit,
		"total_amount":   next.TotalAmount,
		"payment_terms":  next.PaymentTerms,
		"counter_offers": offers,
		"status":         acceptedStatus(c),
	}
	if next.DeliveryDate != nil {
		set["delivery_date"] = *next.DeliveryDate
	}
	return bson.M{
		"$set":  set,
		"$push": bson.M{"negotiation_history": entry},
	}
}

// UpdateStatus sets one of the statuses parties may choose directly.
func (s *contractService) UpdateStatus(ctx context.Context, contractID primitive.ObjectID, actor Actor, status models.ContractStatus, note string) (*ContractResult, error) {
	target, ok := manualTargets[status]
	if !ok {
		return nil, apperr.BadRequest(fmt.Sprintf("Status %q cannot be set directly", status))
	}

	contract, err := s.mutate(ctx, contractID, func(c *models.Contract) (bson.M, error) {
		if !c.IsParty(actor.ID) {
			return nil, errNotParty
		}
		if target.farmerOnly && c.Farmer != actor.ID {
			return nil, apperr.Forbidden(fmt.Sprintf("Only the farmer can mark the contract %s", status))
		}
		if !CanTransition(c.Status, status) {
			return nil, apperr.BadRequest(fmt.Sprintf("Cannot change status from %s to %s", c.Status, status))
		}
		message := fmt.Sprintf("status changed from %s to %s", c.Status, status)
		if note != "" {
			message += ": " + note
		}
		return bson.M{
			"$set": bson.M{"status": status},
			"$push": bson.M{"negotiation_history": models.NegotiationEntry{
				ProposedBy: actor.ID,
				Action:     models.NegotiationStatusChange,
				Message:    message,
				At:         time.Now().UTC(),
			}},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	effects := s.announce(ctx, contract, actor.ID, models.NotifyContractStatus,
		"Contract status updated",
		fmt.Sprintf("Your contract is now %s", status),
		"contract_status")
	return &ContractResult{Contract: contract, Effects: effects}, nil
}

// AddProgressUpdate appends a farmer's note on the crop.
func (s *contractService) AddProgressUpdate(ctx context.Context, contractID primitive.ObjectID, actor Actor, in ProgressInput) (*ContractResult, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Stage != "" && !models.ValidGrowthStage(in.Stage) {
		return nil, apperr.BadRequest("Invalid growth stage")
	}

	contract, err := s.mutate(ctx, contractID, func(c *models.Contract) (bson.M, error) {
		if !c.IsParty(actor.ID) {
			return nil, errNotParty
		}
		if c.Farmer != actor.ID {
			return nil, apperr.Forbidden("Only the farmer can post progress updates")
		}
		if IsTerminal(c.Status) {
			return nil, apperr.BadRequest(fmt.Sprintf("Cannot update a contract that is %s", c.Status))
		}
		return bson.M{"$push": bson.M{"progress_updates": models.ProgressUpdate{
			Note:      in.Note,
			Stage:     in.Stage,
			Images:    in.Images,
			CreatedAt: time.Now().UTC(),
		}}}, nil
	})
	if err != nil {
		return nil, err
	}

	effects := s.announce(ctx, contract, actor.ID, models.NotifyProgressUpdate,
		"Crop progress update",
		in.Note,
		"contract_progress")
	return &ContractResult{Contract: contract, Effects: effects}, nil
}

// GenerateDocument renders the agreement of an accepted contract. A copy is
// archived to object storage when it is configured.
func (s *contractService) GenerateDocument(ctx context.Context, contractID primitive.ObjectID, actor Actor) (*ContractDocumentResult, error) {
	contract, err := s.Get(ctx, contractID, actor)
	if err != nil {
		return nil, err
	}
	if contract.Status != models.StatusAccepted {
		return nil, apperr.BadRequest("A contract document can only be generated for an accepted contract")
	}

	farmer, err := s.users.FindByID(ctx, contract.Farmer)
	if err != nil {
		return nil, fmt.Errorf("failed to load farmer of contract %s: %w", contract.ID.Hex(), err)
	}
	buyer, err := s.users.FindByID(ctx, contract.Buyer)
	if err != nil {
		return nil, fmt.Errorf("failed to load buyer of contract %s: %w", contract.ID.Hex(), err)
	}
	productName := contract.Crop.Hex()
	if product, err := s.products.FindByID(ctx, contract.Crop); err == nil {
		productName = product.Name
	}

	pdf, err := document.Render(&document.ContractDocument{
		Contract:    contract,
		Farmer:      farmer,
		Buyer:       buyer,
		ProductName: productName,
		VerifyURL:   s.cfg.PublicBaseURL,
		Secret:      s.cfg.JwtSecret,
	})
	if err != nil {
		return nil, apperr.Internal("Could not generate contract document", err)
	}

	if s.storage != nil {
		key := fmt.Sprintf("contracts/%s/agreement-v%d.pdf", contract.ID.Hex(), contract.Version)
		runEffects(ctx, "contract "+contract.ID.Hex(),
			newEffect("archive document", func(ctx context.Context) error {
				if err := s.storage.PutObject(ctx, key, "application/pdf", pdf); err != nil {
					return err
				}
				_, err := s.mutate(ctx, contract.ID, func(c *models.Contract) (bson.M, error) {
					return bson.M{"$set": bson.M{"document_key": key}}, nil
				})
				return err
			}),
		)
	}

	return &ContractDocumentResult{
		PDF:      pdf,
		Filename: fmt.Sprintf("contract-%s.pdf", contract.ID.Hex()),
		Contract: contract,
	}, nil
}

func (s *contractService) AttachPayment(ctx context.Context, contractID primitive.ObjectID, stage models.PaymentStage, paymentID primitive.ObjectID) (*models.Contract, error) {
	return s.mutate(ctx, contractID, func(c *models.Contract) (bson.M, error) {
		if !CanPayStage(c.Status, stage) {
			return nil, apperr.BadRequest(fmt.Sprintf("Contract is %s and cannot take a %s payment", c.Status, stage))
		}
		return bson.M{"$push": bson.M{"payments." + string(stage): models.PaymentRef{
			Payment:   paymentID,
			Status:    models.PaymentPending,
			UpdatedAt: time.Now().UTC(),
		}}}, nil
	})
}

func (s *contractService) SettlePayment(ctx context.Context, contractID primitive.ObjectID, stage models.PaymentStage, paymentID primitive.ObjectID, status models.PaymentStatus) (*models.Contract, bool, error) {
	advanced := false
	contract, err := s.mutate(ctx, contractID, func(c *models.Contract) (bson.M, error) {
		advanced = false
		now := time.Now().UTC()
		refs := append([]models.PaymentRef{}, c.Payments.ForStage(stage)...)
		found := false
		for i := range refs {
			if refs[i].Payment == paymentID {
				refs[i].Status = status
				refs[i].UpdatedAt = now
				found = true
			}
		}
		if !found {
			refs = append(refs, models.PaymentRef{Payment: paymentID, Status: status, UpdatedAt: now})
		}

		set := bson.M{"payments." + string(stage): refs}
		if status == models.PaymentCompleted {
			if next, ok := stageAdvance(c.Status, stage); ok {
				set["status"] = next
				advanced = true
			}
		}
		return bson.M{"$set": set}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return contract, advanced, nil
}

// announce runs the standard side effects of a contract event: notify and
// email the counterparty of actorID and push the contract to both parties
// and the contract room.
func (s *contractService) announce(ctx context.Context, c *models.Contract, actorID primitive.ObjectID, ntype models.NotificationType, title, message, templateID string) []EffectResult {
	recipient := c.Counterparty(actorID)
	data := map[string]interface{}{
		"contractId": c.ID.Hex(),
		"status":     c.Status,
	}

	return runEffects(ctx, "contract "+c.ID.Hex(),
		newEffect("notify counterparty", func(ctx context.Context) error {
			if s.notifications == nil || recipient.IsZero() {
				return nil
			}
			_, err := s.notifications.Notify(ctx, recipient, ntype, title, message, data)
			return err
		}),
		newEffect("email counterparty", func(ctx context.Context) error {
			if recipient.IsZero() {
				return nil
			}
			user, err := s.users.FindByID(ctx, recipient)
			if err != nil {
				return err
			}
			return s.mailer.SendTemplate(ctx, user.Email, templateID, map[string]interface{}{
				"name":        user.Name,
				"message":     message,
				"contract_id": c.ID.Hex(),
				"status":      string(c.Status),
				"total":       fmt.Sprintf("%.2f", c.TotalAmount),
				"link":        fmt.Sprintf("%s/contracts/%s", s.cfg.PublicBaseURL, c.ID.Hex()),
			})
		}),
		newEffect("broadcast contract", func(ctx context.Context) error {
			return s.broadcastContract(ctx, c)
		}),
	)
}

func (s *contractService) broadcastContract(ctx context.Context, c *models.Contract) error {
	var errs []error
	for _, room := range []string{ContractRoom(c.ID), UserRoom(c.Farmer), UserRoom(c.Buyer)} {
		if err := s.broadcaster.Broadcast(ctx, room, EventContractUpdated, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
