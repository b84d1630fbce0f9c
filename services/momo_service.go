// services/momo_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/datamartgh/datamart_backend/utils"
)

// MomoService handles disbursements through the mobile money aggregator.
// When the credentials are not configured the service reports itself
// disabled and withdrawals are finalized with a local payout reference.
type MomoService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewMomoService reads MOMO_API_URL and MOMO_API_KEY from the environment.
func NewMomoService() *MomoService {
	baseURL := os.Getenv("MOMO_API_URL")
	apiKey := os.Getenv("MOMO_API_KEY")

	if baseURL == "" || apiKey == "" {
		log.Printf("WARNING: Momo credentials not fully configured:")
		if baseURL == "" {
			log.Printf("  - MOMO_API_URL is missing")
		}
		if apiKey == "" {
			log.Printf("  - MOMO_API_KEY is missing")
		}
		log.Printf("Withdrawals will be finalized with local payout references only")
	} else {
		log.Printf("Momo Service Configuration:")
		log.Printf("  Base URL: %s", baseURL)
		log.Printf("  API Key: [CONFIGURED]")
	}

	return &MomoService{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether the aggregator credentials are configured.
func (s *MomoService) Enabled() bool {
	return s.baseURL != "" && s.apiKey != ""
}

type momoPayoutRequest struct {
	Msisdn    string  `json:"msisdn"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Reference string  `json:"reference"`
	Narration string  `json:"narration"`
}

type momoPayoutResponse struct {
	Status      string `json:"status"`
	TransferID  string `json:"transferId"`
	Description string `json:"description"`
}

// Payout sends a disbursement request and returns the aggregator's transfer
// ID as the payout reference.
func (s *MomoService) Payout(ctx context.Context, momoNumber string, amount float64, reference string) (string, error) {
	if !s.Enabled() {
		return "", utils.NewAppError(utils.ErrKindInternal, "momo service is not configured")
	}
	if momoNumber == "" {
		return "", utils.NewAppError(utils.ErrKindInvalidInput, "agent has no momo number on file")
	}

	payload := momoPayoutRequest{
		Msisdn:    momoNumber,
		Amount:    amount,
		Currency:  "GHS",
		Reference: reference,
		Narration: "DataMart commission withdrawal",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", utils.WrapError(utils.ErrKindInternal, "encoding payout request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/disbursements", bytes.NewBuffer(body))
	if err != nil {
		return "", utils.WrapError(utils.ErrKindInternal, "building payout request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", utils.WrapError(utils.ErrKindTransientStore, "calling momo aggregator", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", utils.WrapError(utils.ErrKindTransientStore, "reading momo response", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", utils.NewAppErrorf(utils.ErrKindInternal, "momo aggregator returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result momoPayoutResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", utils.WrapError(utils.ErrKindInternal, "decoding momo response", err)
	}
	if result.Status != "success" && result.Status != "accepted" {
		return "", utils.NewAppErrorf(utils.ErrKindInternal, "momo payout %s: %s", result.Status, result.Description)
	}
	if result.TransferID == "" {
		return "", fmt.Errorf("momo aggregator accepted payout %s but returned no transfer id", reference)
	}
	return result.TransferID, nil
}
