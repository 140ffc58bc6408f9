package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"lumina/fraud-lab/internal/domain"
)

// TransactionRequest is a raw transaction submitted for scoring. The
// transaction ID is optional and generated when absent.
type TransactionRequest struct {
	TransactionID    string    `json:"transaction_id" validate:"omitempty,max=64"`
	CustomerID       string    `json:"customer_id" validate:"required,max=64"`
	CardNumber       string    `json:"card_number" validate:"omitempty,max=32"`
	Timestamp        time.Time `json:"timestamp"`
	Amount           float64   `json:"amount" validate:"gt=0"`
	MerchantID       string    `json:"merchant_id" validate:"required"`
	MerchantCategory string    `json:"merchant_category" validate:"required,oneof=grocery electronics gas restaurant retail jewelry luxury_goods"`
	MerchantLat      float64   `json:"merchant_lat" validate:"gte=-90,lte=90"`
	MerchantLong     float64   `json:"merchant_long" validate:"gte=-180,lte=180"`
	DistanceFromHome float64   `json:"distance_from_home" validate:"gte=0"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in errors.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateTransactionRequest checks required fields and value ranges.
func validateTransactionRequest(v *validator.Validate, req *TransactionRequest) error {
	if err := v.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Param() != "" {
				return fmt.Errorf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
			}
			return fmt.Errorf("%s failed %s", fe.Field(), fe.Tag())
		}
		return err
	}
	if req.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}

// toTransaction builds the unlabelled domain transaction.
func (req *TransactionRequest) toTransaction() domain.Transaction {
	id := req.TransactionID
	if id == "" {
		id = uuid.NewString()
	}
	tx := domain.Transaction{
		TransactionID:    id,
		CustomerID:       req.CustomerID,
		CardNumber:       req.CardNumber,
		Amount:           req.Amount,
		MerchantID:       req.MerchantID,
		MerchantCategory: req.MerchantCategory,
		MerchantLat:      req.MerchantLat,
		MerchantLong:     req.MerchantLong,
		DistanceFromHome: req.DistanceFromHome,
	}
	tx.SetTimestamp(req.Timestamp.UTC())
	tx.Label(domain.FraudNone)
	return tx
}
