package payments

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/storage"
)

// ReceiptStore caches rendered receipts in object storage and serves them
// through pre-signed download URLs.
type ReceiptStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	GetObjectStream(ctx context.Context, key string) (io.ReadCloser, error)
	GeneratePresignedDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
	PresignExpire() time.Duration
	DeleteObject(ctx context.Context, key string) error
}

// ReceiptData is everything printed on a payment receipt.
type ReceiptData struct {
	Transaction *models.Transaction
	CourseTitle string
	UserName    string
	UserEmail   string
}

// GenerateReceiptPDF renders a receipt for a successful transaction.
func GenerateReceiptPDF(data ReceiptData) ([]byte, error) {
	tx := data.Transaction
	if tx.Status != models.TxStatusSuccess && tx.Status != models.TxStatusRefunded {
		return nil, ErrReceiptUnavailable
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 12, "LearnHub Payment Receipt")
	pdf.Ln(16)

	pdf.SetFont("Arial", "", 11)
	completedAt := tx.CreatedAt
	if tx.CompletedAt != nil {
		completedAt = *tx.CompletedAt
	}
	row := func(label, value string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(55, 8, label)
		pdf.SetFont("Arial", "", 11)
		pdf.Cell(0, 8, value)
		pdf.Ln(8)
	}
	row("Receipt No.", tx.TransactionID)
	row("Date", completedAt.Format("02 Jan 2006 15:04 MST"))
	row("Billed To", fmt.Sprintf("%s <%s>", data.UserName, data.UserEmail))
	row("Course", data.CourseTitle)
	if tx.PaymentMethod != nil {
		row("Payment Method", *tx.PaymentMethod)
	}
	if tx.GatewayTransactionID != nil {
		row("Gateway Reference", *tx.GatewayTransactionID)
	}
	pdf.Ln(6)

	money := func(label string, v string) {
		pdf.SetFont("Arial", "", 11)
		pdf.Cell(55, 8, label)
		pdf.Cell(0, 8, fmt.Sprintf("%s %s", tx.Currency, v))
		pdf.Ln(8)
	}
	money("Course Price", tx.OriginalAmount.StringFixed(2))
	if tx.DiscountCode != nil {
		money(fmt.Sprintf("Discount (%s)", *tx.DiscountCode), "-"+tx.DiscountAmount.StringFixed(2))
	}
	money("GST (18%)", tx.GSTAmount.StringFixed(2))
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(55, 10, "Total Paid")
	pdf.Cell(0, 10, fmt.Sprintf("%s %s", tx.Currency, tx.FinalAmount.StringFixed(2)))
	pdf.Ln(14)

	if tx.Status == models.TxStatusRefunded && tx.RefundedAt != nil {
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(0, 8, fmt.Sprintf("REFUNDED on %s", tx.RefundedAt.Format("02 Jan 2006")))
		pdf.Ln(10)
	}

	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(0, 8, "This is a system-generated receipt and needs no signature.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Receipt returns the PDF bytes for a transaction, generating and caching to
// object storage on first request. With no store configured the PDF is
// rendered on every call.
func (s *Service) Receipt(ctx context.Context, transactionID string, userID uuid.UUID, role string) ([]byte, *models.Transaction, error) {
	tx, err := s.Status(ctx, transactionID, userID, role)
	if err != nil {
		return nil, nil, err
	}
	if tx.Status != models.TxStatusSuccess && tx.Status != models.TxStatusRefunded {
		return nil, nil, ErrReceiptUnavailable
	}

	if s.store != nil && tx.ReceiptKey != nil {
		rc, err := s.store.GetObjectStream(ctx, *tx.ReceiptKey)
		if err == nil {
			defer rc.Close()
			var buf bytes.Buffer
			if _, err := buf.ReadFrom(rc); err == nil {
				return buf.Bytes(), tx, nil
			}
		}
		s.logger.Warn("cached receipt fetch failed, regenerating",
			zap.String("transaction_id", tx.TransactionID))
	}

	pdf, err := s.renderReceipt(ctx, tx)
	if err != nil {
		return nil, nil, err
	}

	if s.store != nil {
		key := storage.ReceiptKey(tx.UserID.String(), tx.TransactionID)
		if err := s.store.Upload(ctx, key, "application/pdf", bytes.NewReader(pdf)); err == nil {
			_ = s.txRepo.SetReceiptKey(ctx, tx.ID, key)
		} else {
			s.logger.Warn("receipt upload failed",
				zap.String("transaction_id", tx.TransactionID),
				zap.Error(err))
		}
	}
	return pdf, tx, nil
}

// ReceiptURL returns a pre-signed download URL for the receipt, rendering
// and uploading it first if needed. Returns "" when no object store is
// configured; callers then fall back to streaming via Receipt.
func (s *Service) ReceiptURL(ctx context.Context, transactionID string, userID uuid.UUID, role string) (string, error) {
	if s.store == nil {
		return "", nil
	}
	tx, err := s.Status(ctx, transactionID, userID, role)
	if err != nil {
		return "", err
	}
	if tx.Status != models.TxStatusSuccess && tx.Status != models.TxStatusRefunded {
		return "", ErrReceiptUnavailable
	}

	key := ""
	if tx.ReceiptKey != nil {
		key = *tx.ReceiptKey
	} else {
		pdf, err := s.renderReceipt(ctx, tx)
		if err != nil {
			return "", err
		}
		key = storage.ReceiptKey(tx.UserID.String(), tx.TransactionID)
		if err := s.store.Upload(ctx, key, "application/pdf", bytes.NewReader(pdf)); err != nil {
			return "", fmt.Errorf("receipt upload: %w", err)
		}
		_ = s.txRepo.SetReceiptKey(ctx, tx.ID, key)
	}
	return s.store.GeneratePresignedDownloadURL(ctx, key, s.store.PresignExpire())
}

// invalidateReceipt drops a cached receipt after the transaction changed,
// such as a refund that must now appear on the PDF.
func (s *Service) invalidateReceipt(ctx context.Context, tx *models.Transaction) {
	if s.store == nil || tx.ReceiptKey == nil {
		return
	}
	if err := s.store.DeleteObject(ctx, *tx.ReceiptKey); err != nil {
		s.logger.Warn("stale receipt delete failed",
			zap.String("transaction_id", tx.TransactionID),
			zap.Error(err))
	}
	if err := s.txRepo.ClearReceiptKey(ctx, tx.ID); err != nil {
		s.logger.Warn("receipt key clear failed",
			zap.String("transaction_id", tx.TransactionID),
			zap.Error(err))
	}
}

// RenderReceiptFor regenerates the PDF for a transaction without ownership
// checks. The worker uses it for email attachments.
func (s *Service) RenderReceiptFor(ctx context.Context, tx *models.Transaction) ([]byte, error) {
	return s.renderReceipt(ctx, tx)
}

func (s *Service) renderReceipt(ctx context.Context, tx *models.Transaction) ([]byte, error) {
	course, err := s.courseRepo.GetByID(ctx, tx.CourseID)
	if err != nil {
		return nil, err
	}
	buyer, err := s.users.GetByID(ctx, tx.UserID)
	if err != nil {
		return nil, err
	}
	return GenerateReceiptPDF(ReceiptData{
		Transaction: tx,
		CourseTitle: course.Title,
		UserName:    buyer.FullName,
		UserEmail:   buyer.Email,
	})
}
