package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/config"
	"agrolink/api/internal/db"
	"agrolink/api/internal/gateway"
	"agrolink/api/internal/models"
)

const (
	paymentsCollection        = "payments"
	processedEventsCollection = "processed_events"
	processedEventTTL         = 90 * 24 * time.Hour
	reconcileBatchSize        = 100
	cleanupTimeout            = 10 * time.Second
	// A marker older than this whose payment never reached the marked
	// outcome was left by an interrupted settle and may be reclaimed.
	staleMarkerAge = 2 * time.Minute
)

// WebhookSignatureHeader carries the gateway MAC when it is not in the body.
const WebhookSignatureHeader = "X-Instamojo-Signature"

// PaymentResult is the outcome of a payment operation.
type PaymentResult struct {
	Payment  *models.Payment
	Contract *models.Contract
	// AlreadyProcessed is set when the gateway event had been applied before
	// and nothing changed.
	AlreadyProcessed bool
	Effects          []EffectResult
}

// PaymentFilter narrows the admin payment listing.
type PaymentFilter struct {
	Status    models.PaymentStatus
	Disbursed *bool
	Limit     int64
	Skip      int64
}

// IPaymentService drives the staged payments of a contract.
type IPaymentService interface {
	CreatePayment(ctx context.Context, contractID primitive.ObjectID, actor Actor, stage models.PaymentStage) (*PaymentResult, error)
	HandleWebhook(ctx context.Context, payload map[string]string, signature string) (*PaymentResult, error)
	VerifyPayment(ctx context.Context, paymentID primitive.ObjectID, actor Actor) (*PaymentResult, error)
	MarkAsDisbursed(ctx context.Context, paymentID primitive.ObjectID, actor Actor, notes string) (*PaymentResult, error)
	ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error)
	ListForContract(ctx context.Context, contractID primitive.ObjectID, actor Actor) ([]models.Payment, error)
	Get(ctx context.Context, paymentID primitive.ObjectID, actor Actor) (*models.Payment, error)
	ListAll(ctx context.Context, actor Actor, filter PaymentFilter) ([]models.Payment, error)
}

type paymentService struct {
	db            *mongo.Database
	cfg           *config.Config
	gateway       gateway.Client
	contracts     IContractService
	users         IUserService
	notifications INotificationService
	mailer        Mailer
	broadcaster   Broadcaster
}

func NewPaymentService(
	db *mongo.Database,
	cfg *config.Config,
	gw gateway.Client,
	contracts IContractService,
	users IUserService,
	notifications INotificationService,
	mailer Mailer,
	broadcaster Broadcaster,
) IPaymentService {
	if mailer == nil {
		mailer = LogMailer()
	}
	if broadcaster == nil {
		broadcaster = NopBroadcaster()
	}
	return &paymentService{
		db:            db,
		cfg:           cfg,
		gateway:       gw,
		contracts:     contracts,
		users:         users,
		notifications: notifications,
		mailer:        mailer,
		broadcaster:   broadcaster,
	}
}

func (s *paymentService) load(ctx context.Context, filter bson.M) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.Collection(paymentsCollection).FindOne(ctx, filter).Decode(&payment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("Payment not found")
		}
		return nil, fmt.Errorf("error finding payment: %w", err)
	}
	return &payment, nil
}

// detached returns a context for compensating writes, which must still land
// after the caller's context is cancelled.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

func canSeePayment(p *models.Payment, actor Actor) bool {
	return actor.IsAdmin() || p.Buyer == actor.ID || p.Farmer == actor.ID
}

// CreatePayment opens a gateway payment request for one stage of a contract.
func (s *paymentService) CreatePayment(ctx context.Context, contractID primitive.ObjectID, actor Actor, stage models.PaymentStage) (*PaymentResult, error) {
	if !models.ValidStage(stage) {
		return nil, apperr.BadRequest("Invalid payment stage")
	}
	contract, err := s.contracts.Get(ctx, contractID, actor)
	if err != nil {
		return nil, err
	}
	if contract.Buyer != actor.ID {
		return nil, apperr.Forbidden("Only the buyer can make payments")
	}
	if !CanPayStage(contract.Status, stage) {
		return nil, apperr.BadRequest(fmt.Sprintf("Contract is %s and cannot take a %s payment", contract.Status, stage))
	}
	amount := contract.StageAmount(stage)

	now := time.Now().UTC()
	payment := &models.Payment{
		Contract:  contract.ID,
		Stage:     stage,
		Amount:    amount,
		Currency:  s.cfg.Currency,
		Buyer:     contract.Buyer,
		Farmer:    contract.Farmer,
		Status:    models.PaymentPending,
		ActiveKey: models.PaymentActiveKey(contract.ID, stage),
		CreatedAt: now,
		UpdatedAt: now,
	}
	collection := s.db.Collection(paymentsCollection)
	if _, err := db.InsertOne(ctx, collection, payment); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, apperr.Conflict(fmt.Sprintf("A %s payment for this contract is already pending or completed", stage))
		}
		return nil, err
	}

	// From here on a failure must not leave the payment behind, even when
	// ctx is what failed.
	discard := func(cause error) {
		cleanupCtx, cancel := detached(ctx)
		defer cancel()
		if _, err := collection.DeleteOne(cleanupCtx, bson.M{"_id": payment.ID}); err != nil {
			log.Printf("Failed to remove payment %s after %v: %v", payment.ID.Hex(), cause, err)
		}
	}

	if amount <= 0 {
		return s.settleZeroAmount(ctx, contract, payment, discard)
	}

	buyer, err := s.users.FindByID(ctx, contract.Buyer)
	if err != nil {
		discard(err)
		return nil, fmt.Errorf("failed to load buyer %s: %w", contract.Buyer.Hex(), err)
	}

	request, err := s.gateway.CreatePaymentRequest(ctx, gateway.PaymentRequestInput{
		Purpose:    fmt.Sprintf("%s %s payment %s", s.cfg.AppName, stage, contract.ID.Hex()),
		Amount:     amount,
		BuyerName:  buyer.Name,
		BuyerEmail: buyer.Email,
		BuyerPhone: buyer.Phone,
	})
	if err != nil {
		discard(err)
		return nil, apperr.Unavailable("Payment gateway is unavailable, please try again", err)
	}

	update := bson.M{"$set": bson.M{
		"gateway_request_id": request.ID,
		"payment_url":        request.LongURL,
		"updated_at":         time.Now().UTC(),
	}}
	if _, err := collection.UpdateByID(ctx, payment.ID, update); err != nil {
		discard(err)
		return nil, fmt.Errorf("failed to store gateway request for payment %s: %w", payment.ID.Hex(), err)
	}
	payment.GatewayRequestID = request.ID
	payment.PaymentURL = request.LongURL

	updated, err := s.contracts.AttachPayment(ctx, contract.ID, stage, payment.ID)
	if err != nil {
		discard(err)
		return nil, err
	}
	log.Printf("Payment %s (%s, %.2f) created for contract %s", payment.ID.Hex(), stage, amount, contract.ID.Hex())

	effects := runEffects(ctx, "payment "+payment.ID.Hex(),
		newEffect("notify farmer", func(ctx context.Context) error {
			_, err := s.notifications.Notify(ctx, contract.Farmer, models.NotifyPaymentCreated,
				"Payment initiated",
				fmt.Sprintf("The buyer started the %s payment of %.2f", stage, amount),
				map[string]interface{}{"contractId": contract.ID.Hex(), "paymentId": payment.ID.Hex(), "stage": stage})
			return err
		}),
	)
	return &PaymentResult{Payment: payment, Contract: updated, Effects: effects}, nil
}

// settleZeroAmount completes a stage whose share of the total is zero
// without going through the gateway, so the contract can move past it.
func (s *paymentService) settleZeroAmount(ctx context.Context, contract *models.Contract, payment *models.Payment, discard func(error)) (*PaymentResult, error) {
	if _, err := s.contracts.AttachPayment(ctx, contract.ID, payment.Stage, payment.ID); err != nil {
		discard(err)
		return nil, err
	}
	result, err := s.settle(ctx, payment, models.PaymentCompleted, "", map[string]string{"source": "zero_amount"})
	if err != nil {
		discard(err)
		return nil, err
	}
	log.Printf("Payment %s (%s) settled without gateway, nothing due on contract %s", payment.ID.Hex(), payment.Stage, contract.ID.Hex())
	return result, nil
}

// HandleWebhook applies a signed gateway notification. The signature is
// checked before anything is read or written.
func (s *paymentService) HandleWebhook(ctx context.Context, payload map[string]string, signature string) (*PaymentResult, error) {
	if signature == "" {
		signature = payload[gateway.SignatureField]
	}
	if !gateway.VerifySignature(payload, signature, s.cfg.GatewaySalt) {
		return nil, apperr.BadRequest("Invalid webhook signature")
	}
	requestID := payload["payment_request_id"]
	if requestID == "" {
		return nil, apperr.BadRequest("Webhook is missing payment_request_id")
	}

	payment, err := s.load(ctx, bson.M{"gateway_request_id": requestID})
	if err != nil {
		return nil, err
	}

	status := models.PaymentFailed
	if payload["status"] == gateway.PaymentStatusCredit {
		status = models.PaymentCompleted
	}
	return s.settle(ctx, payment, status, payload["payment_id"], payload)
}

// VerifyPayment polls the gateway for a payment the webhook has not settled yet.
func (s *paymentService) VerifyPayment(ctx context.Context, paymentID primitive.ObjectID, actor Actor) (*PaymentResult, error) {
	payment, err := s.load(ctx, bson.M{"_id": paymentID})
	if err != nil {
		return nil, err
	}
	if !canSeePayment(payment, actor) {
		return nil, apperr.Forbidden("You are not a party to this payment")
	}
	if payment.IsTerminal() || payment.GatewayRequestID == "" {
		return &PaymentResult{Payment: payment}, nil
	}

	request, err := s.gateway.GetPaymentRequest(ctx, payment.GatewayRequestID)
	if err != nil {
		return nil, apperr.Unavailable("Could not reach the payment gateway", err)
	}
	if !request.IsPaid() {
		return &PaymentResult{Payment: payment}, nil
	}
	credited, _ := request.CreditedPayment()

	return s.settle(ctx, payment, models.PaymentCompleted, credited.PaymentID, map[string]string{
		"payment_request_id": request.ID,
		"payment_id":         credited.PaymentID,
		"status":             credited.Status,
		"source":             "verify",
	})
}

// processedKey identifies one outcome of one gateway request. Payments that
// never reached the gateway are keyed by their own id.
func processedKey(p *models.Payment, status models.PaymentStatus) string {
	ref := p.GatewayRequestID
	if ref == "" {
		ref = "internal-" + p.ID.Hex()
	}
	return fmt.Sprintf("payment:%s:%s", ref, status)
}

// claimMarker inserts the processed marker for an outcome. It reports false
// when the outcome was already applied. A marker whose payment never reached
// that outcome and that is older than staleMarkerAge is reclaimed.
func (s *paymentService) claimMarker(ctx context.Context, marker *models.ProcessedEvent, status models.PaymentStatus) (bool, error) {
	markers := s.db.Collection(processedEventsCollection)
	_, err := db.InsertOne(ctx, markers, marker)
	if err == nil {
		return true, nil
	}
	if !db.IsMongoDuplicateKeyError(err) {
		return false, err
	}

	current, err := s.load(ctx, bson.M{"_id": marker.Payment})
	if err != nil {
		return false, err
	}
	if current.Status == status {
		return false, nil
	}
	res, err := markers.DeleteOne(ctx, bson.M{
		"key":        marker.Key,
		"created_at": bson.M{"$lt": marker.CreatedAt.Add(-staleMarkerAge)},
	})
	if err != nil {
		return false, fmt.Errorf("failed to reclaim processed marker %s: %w", marker.Key, err)
	}
	if res.DeletedCount == 0 {
		return false, nil
	}
	log.Printf("Reclaimed stale processed marker %s, payment %s is still %s", marker.Key, current.ID.Hex(), current.Status)

	marker.ID = primitive.NilObjectID
	if _, err := db.InsertOne(ctx, markers, marker); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// settle is the single completion path shared by the webhook, polling and
// zero-amount stages. A processed marker keyed by request id and outcome
// makes it idempotent: applying the same gateway event twice changes
// nothing the second time.
func (s *paymentService) settle(ctx context.Context, payment *models.Payment, status models.PaymentStatus, gatewayPaymentID string, payload map[string]string) (*PaymentResult, error) {
	now := time.Now().UTC()
	marker := &models.ProcessedEvent{
		Key:       processedKey(payment, status),
		Payment:   payment.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(processedEventTTL),
	}
	claimed, err := s.claimMarker(ctx, marker, status)
	if err != nil {
		return nil, err
	}
	if !claimed {
		log.Printf("Gateway event %s already processed, ignoring", marker.Key)
		return &PaymentResult{Payment: payment, AlreadyProcessed: true}, nil
	}
	markers := s.db.Collection(processedEventsCollection)
	unmark := func() {
		cleanupCtx, cancel := detached(ctx)
		defer cancel()
		if _, err := markers.DeleteOne(cleanupCtx, bson.M{"_id": marker.ID}); err != nil {
			log.Printf("Failed to remove processed marker %s: %v", marker.Key, err)
		}
	}

	// A credit may follow an earlier failed attempt on the same request; a
	// failure never overrides a completed payment.
	from := []models.PaymentStatus{models.PaymentPending}
	set := bson.M{"status": status, "updated_at": now}
	unset := bson.M{}
	if status == models.PaymentCompleted {
		from = append(from, models.PaymentFailed)
		set["completed_at"] = now
		set["active_key"] = models.PaymentActiveKey(payment.Contract, payment.Stage)
	} else {
		unset["active_key"] = ""
	}
	if gatewayPaymentID != "" {
		set["gateway_payment_id"] = gatewayPaymentID
	}
	if payload != nil {
		set["gateway_payload"] = payload
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var updated models.Payment
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": payment.ID, "status": bson.M{"$in": from}}
	err = s.db.Collection(paymentsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		log.Printf("Payment %s is already %s, not applying %s", payment.ID.Hex(), payment.Status, status)
		return &PaymentResult{Payment: payment, AlreadyProcessed: true}, nil
	}
	if err != nil {
		unmark()
		if db.IsMongoDuplicateKeyError(err) {
			return nil, apperr.Conflict("Another payment for this stage is already live")
		}
		return nil, fmt.Errorf("failed to settle payment %s: %w", payment.ID.Hex(), err)
	}

	contract, advanced, err := s.contracts.SettlePayment(ctx, payment.Contract, payment.Stage, payment.ID, status)
	if err != nil {
		revertSet := bson.M{"status": payment.Status, "updated_at": time.Now().UTC()}
		revertUnset := bson.M{"completed_at": ""}
		if payment.ActiveKey != "" {
			revertSet["active_key"] = payment.ActiveKey
		} else {
			revertUnset["active_key"] = ""
		}
		revert := bson.M{"$set": revertSet, "$unset": revertUnset}
		cleanupCtx, cancel := detached(ctx)
		if _, rerr := s.db.Collection(paymentsCollection).UpdateByID(cleanupCtx, payment.ID, revert); rerr != nil {
			log.Printf("Failed to revert payment %s: %v", payment.ID.Hex(), rerr)
		}
		cancel()
		unmark()
		return nil, fmt.Errorf("failed to record payment %s on contract: %w", payment.ID.Hex(), err)
	}
	log.Printf("Payment %s settled as %s (contract %s now %s, advanced=%t)", payment.ID.Hex(), status, contract.ID.Hex(), contract.Status, advanced)

	effects := s.settlementEffects(ctx, &updated, contract)
	return &PaymentResult{Payment: &updated, Contract: contract, Effects: effects}, nil
}

func (s *paymentService) settlementEffects(ctx context.Context, p *models.Payment, c *models.Contract) []EffectResult {
	data := map[string]interface{}{
		"contractId": c.ID.Hex(),
		"paymentId":  p.ID.Hex(),
		"stage":      p.Stage,
		"amount":     p.Amount,
	}
	mail := map[string]interface{}{
		"contract_id": c.ID.Hex(),
		"payment_id":  p.ID.Hex(),
		"stage":       string(p.Stage),
		"amount":      fmt.Sprintf("%.2f %s", p.Amount, p.Currency),
		"status":      string(c.Status),
	}

	effects := []effect{
		newEffect("broadcast contract", func(ctx context.Context) error {
			var errs []error
			for _, room := range []string{ContractRoom(c.ID), UserRoom(c.Farmer), UserRoom(c.Buyer)} {
				if err := s.broadcaster.Broadcast(ctx, room, EventContractUpdated, c); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		}),
	}

	if p.Status != models.PaymentCompleted {
		effects = append(effects, newEffect("notify buyer", func(ctx context.Context) error {
			_, err := s.notifications.Notify(ctx, p.Buyer, models.NotifyPaymentFailed,
				"Payment failed",
				fmt.Sprintf("Your %s payment of %.2f did not go through", p.Stage, p.Amount), data)
			return err
		}))
		return runEffects(ctx, "payment "+p.ID.Hex(), effects...)
	}

	effects = append(effects,
		newEffect("notify buyer", func(ctx context.Context) error {
			_, err := s.notifications.Notify(ctx, p.Buyer, models.NotifyPaymentCompleted,
				"Payment received",
				fmt.Sprintf("Your %s payment of %.2f was received", p.Stage, p.Amount), data)
			return err
		}),
		newEffect("notify farmer", func(ctx context.Context) error {
			_, err := s.notifications.Notify(ctx, p.Farmer, models.NotifyPaymentCompleted,
				"Payment completed",
				fmt.Sprintf("The buyer completed the %s payment of %.2f", p.Stage, p.Amount), data)
			return err
		}),
		newEffect("email admin", func(ctx context.Context) error {
			if s.cfg.AdminEmail == "" {
				return nil
			}
			return s.mailer.SendTemplate(ctx, s.cfg.AdminEmail, "payment_completed_admin", mail)
		}),
		newEffect("email farmer", func(ctx context.Context) error {
			farmer, err := s.users.FindByID(ctx, p.Farmer)
			if err != nil {
				return err
			}
			vars := map[string]interface{}{"name": farmer.Name}
			for k, v := range mail {
				vars[k] = v
			}
			return s.mailer.SendTemplate(ctx, farmer.Email, "payment_completed", vars)
		}),
	)
	return runEffects(ctx, "payment "+p.ID.Hex(), effects...)
}

// MarkAsDisbursed records that an admin paid a completed payment out to the farmer.
func (s *paymentService) MarkAsDisbursed(ctx context.Context, paymentID primitive.ObjectID, actor Actor, notes string) (*PaymentResult, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("Only admins can disburse payments")
	}

	now := time.Now().UTC()
	set := bson.M{
		"disbursed":          true,
		"disbursed_at":       now,
		"disbursement_notes": notes,
		"updated_at":         now,
	}
	if !actor.ID.IsZero() {
		set["disbursed_by"] = actor.ID
	}

	var updated models.Payment
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": paymentID, "status": models.PaymentCompleted, "disbursed": false}
	err := s.db.Collection(paymentsCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		current, lerr := s.load(ctx, bson.M{"_id": paymentID})
		if lerr != nil {
			return nil, lerr
		}
		if current.Disbursed {
			return nil, apperr.BadRequest("Payment has already been disbursed")
		}
		return nil, apperr.BadRequest("Only completed payments can be disbursed")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to disburse payment %s: %w", paymentID.Hex(), err)
	}
	log.Printf("Payment %s disbursed by %s", paymentID.Hex(), actor.ID.Hex())

	message := fmt.Sprintf("The %s payment of %.2f %s has been disbursed", updated.Stage, updated.Amount, updated.Currency)
	data := map[string]interface{}{"contractId": updated.Contract.Hex(), "paymentId": updated.ID.Hex()}
	effects := runEffects(ctx, "payment "+updated.ID.Hex(),
		newEffect("notify farmer", func(ctx context.Context) error {
			_, err := s.notifications.Notify(ctx, updated.Farmer, models.NotifyPaymentDisbursed, "Payment disbursed", message, data)
			return err
		}),
		newEffect("notify admin", func(ctx context.Context) error {
			if actor.ID.IsZero() {
				return nil
			}
			_, err := s.notifications.Notify(ctx, actor.ID, models.NotifyPaymentDisbursed, "Disbursement recorded", message, data)
			return err
		}),
		newEffect("email farmer", func(ctx context.Context) error {
			farmer, err := s.users.FindByID(ctx, updated.Farmer)
			if err != nil {
				return err
			}
			return s.mailer.SendTemplate(ctx, farmer.Email, "payment_disbursed", map[string]interface{}{
				"name":    farmer.Name,
				"message": message,
				"notes":   notes,
			})
		}),
		newEffect("email admin", func(ctx context.Context) error {
			if s.cfg.AdminEmail == "" {
				return nil
			}
			return s.mailer.SendTemplate(ctx, s.cfg.AdminEmail, "payment_disbursed", map[string]interface{}{
				"name":    "Admin",
				"message": message,
				"notes":   notes,
			})
		}),
	)
	return &PaymentResult{Payment: &updated, Effects: effects}, nil
}

// ReconcilePending verifies pending payments older than olderThan against
// the gateway and returns how many were settled.
func (s *paymentService) ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error) {
	filter := bson.M{
		"status":             models.PaymentPending,
		"gateway_request_id": bson.M{"$type": "string"},
		"created_at":         bson.M{"$lt": time.Now().UTC().Add(-olderThan)},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(reconcileBatchSize)
	cursor, err := s.db.Collection(paymentsCollection).Find(ctx, filter, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to query pending payments: %w", err)
	}
	defer cursor.Close(ctx)

	var pending []models.Payment
	if err := cursor.All(ctx, &pending); err != nil {
		return 0, fmt.Errorf("failed to decode pending payments: %w", err)
	}

	settled := 0
	for _, p := range pending {
		result, err := s.VerifyPayment(ctx, p.ID, SystemActor)
		if err != nil {
			log.Printf("Reconcile of payment %s failed: %v", p.ID.Hex(), err)
			continue
		}
		if result.Payment.IsTerminal() && !result.AlreadyProcessed {
			settled++
		}
	}
	return settled, nil
}

func (s *paymentService) ListForContract(ctx context.Context, contractID primitive.ObjectID, actor Actor) ([]models.Payment, error) {
	if _, err := s.contracts.Get(ctx, contractID, actor); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(paymentsCollection).Find(ctx, bson.M{"contract": contractID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments of contract %s: %w", contractID.Hex(), err)
	}
	defer cursor.Close(ctx)

	payments := []models.Payment{}
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return payments, nil
}

func (s *paymentService) Get(ctx context.Context, paymentID primitive.ObjectID, actor Actor) (*models.Payment, error) {
	payment, err := s.load(ctx, bson.M{"_id": paymentID})
	if err != nil {
		return nil, err
	}
	if !canSeePayment(payment, actor) {
		return nil, apperr.Forbidden("You are not a party to this payment")
	}
	return payment, nil
}

// ListAll lists payments across all contracts for admins, oldest first, so
// completed payments awaiting disbursement can be found.
func (s *paymentService) ListAll(ctx context.Context, actor Actor, filter PaymentFilter) ([]models.Payment, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("Only admins can list all payments")
	}
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Disbursed != nil {
		query["disbursed"] = *filter.Disbursed
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit).SetSkip(filter.Skip)

	cursor, err := s.db.Collection(paymentsCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer cursor.Close(ctx)

	payments := []models.Payment{}
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return payments, nil
}
