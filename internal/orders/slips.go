package orders

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
	"github.com/angelmondragon/tirestore-backend/pkg/pubsub"
	"github.com/angelmondragon/tirestore-backend/pkg/storage/gcs"
)

var allowedSlipTypes = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}

// UploadPaymentSlip stores a transfer slip for a pending order and moves the
// order to payment review.
func (s *service) UploadPaymentSlip(ctx context.Context, userID, orderID uuid.UUID, file io.Reader) (*PaymentSlipDTO, error) {
	if file == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}
	data, err := io.ReadAll(io.LimitReader(file, s.slipMaxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if int64(len(data)) > s.slipMaxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeTooLarge, "payment slip is too large").WithDetails(map[string]any{
			"max_bytes": s.slipMaxBytes,
		})
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	mime := mimetype.Detect(data)
	if !slipTypeAllowed(mime) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported file type").WithDetails(map[string]any{
			"content_type": mime.String(),
			"allowed":      allowedSlipTypes,
		})
	}

	order, err := s.loadFresh(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status != enums.OrderStatusPendingPayment || order.PaymentOverdue(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").WithDetails(map[string]string{
			"status": order.Status.String(),
		})
	}

	slipID := uuid.New()
	key := gcs.SlipKey(s.slipPrefix, order.ID, slipID, mime.Extension())
	if _, err := s.objects.Upload(ctx, key, mime.String(), bytes.NewReader(data)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment slip")
	}

	slip := &models.PaymentSlip{
		ID:          slipID,
		OrderID:     order.ID,
		StorageKey:  key,
		ContentType: mime.String(),
		SizeBytes:   int64(len(data)),
		Status:      enums.PaymentSlipStatusSubmitted,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateSlip(ctx, slip); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment slip")
		}
		ok, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPendingPayment, enums.OrderStatusPaymentReview, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
		}
		return nil
	})
	if err != nil {
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.warn(ctx, order.ID, "orphaned payment slip object", delErr)
		}
		return nil, err
	}

	order.Status = enums.OrderStatusPaymentReview
	s.metrics.IncTransition(order.Status.String())
	s.publish(ctx, pubsub.EventPaymentSlipUpload, *order)

	dto := mapSlip(*slip)
	return &dto, nil
}

// ReviewPaymentSlip approves or rejects a submitted slip. Approval marks the
// order paid; rejection reopens the payment window.
func (s *service) ReviewPaymentSlip(ctx context.Context, slipID uuid.UUID, input SlipReviewInput, actor Actor) (*OrderDTO, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		slip, err := repo.FindSlip(ctx, slipID)
		if err != nil {
			return mapLookupError(err, "payment slip not found")
		}
		if slip.Status != enums.PaymentSlipStatusSubmitted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment slip already reviewed")
		}
		order, err := repo.FindByID(ctx, slip.OrderID)
		if err != nil {
			return mapLookupError(err, "order not found")
		}

		slipStatus, next := enums.PaymentSlipStatusRejected, enums.OrderStatusPendingPayment
		if input.Approve {
			slipStatus, next = enums.PaymentSlipStatusApproved, enums.OrderStatusPaid
		}
		if !order.Status.CanTransitionTo(next) {
			return transitionConflict(order.Status, next)
		}

		now := s.now()
		slipUpdates := map[string]any{
			"status":      slipStatus,
			"reviewed_at": now,
		}
		if actor.UserID != uuid.Nil {
			slipUpdates["reviewed_by"] = actor.UserID
		}
		if input.Note != "" {
			slipUpdates["review_note"] = input.Note
		}
		ok, err := repo.ReviewSlip(ctx, slip.ID, slipUpdates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "review payment slip")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment slip already reviewed")
		}

		ok, err = repo.TransitionStatus(ctx, order.ID, order.Status, next, s.transitionUpdates(next, now, nil))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}
		if result, err = repo.FindByID(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, *result, actor)
	dto := MapOrder(*result)
	return &dto, nil
}

// DownloadPaymentSlip opens the stored slip object.
func (s *service) DownloadPaymentSlip(ctx context.Context, slipID uuid.UUID) (*SlipDownload, error) {
	slip, err := s.repo.FindSlip(ctx, slipID)
	if err != nil {
		return nil, mapLookupError(err, "payment slip not found")
	}
	body, obj, err := s.objects.Open(ctx, slip.StorageKey)
	if err != nil {
		if gcs.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment slip file missing")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open payment slip")
	}

	download := &SlipDownload{
		Body:        body,
		ContentType: slip.ContentType,
		Size:        slip.SizeBytes,
		FileName:    path.Base(slip.StorageKey),
	}
	if obj != nil {
		if obj.ContentType != "" {
			download.ContentType = obj.ContentType
		}
		if obj.Size > 0 {
			download.Size = obj.Size
		}
	}
	return download, nil
}

func slipTypeAllowed(mime *mimetype.MIME) bool {
	for _, allowed := range allowedSlipTypes {
		if mime.Is(allowed) {
			return true
		}
	}
	return false
}
