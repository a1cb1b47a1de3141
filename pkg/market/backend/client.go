// Package backend implements the REST client for the marketplace backend:
// freshness tokens, offer persistence, transaction broadcast, and the
// post-settlement bookkeeping endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/propchain/marketplace-client/pkg/market/data"
	"github.com/propchain/marketplace-client/pkg/retry"
	"github.com/propchain/marketplace-client/pkg/retry/backoff"
	"github.com/propchain/marketplace-client/pkg/solana"
)

const (
	blockhashPath       = "/api/blockhash"
	offersPath          = "/api/offers"
	offerRespondFormat  = "/api/offers/%s/respond"
	propertyFormat      = "/api/properties/%s"
	propertyMintFormat  = "/api/properties/%s/nft-mint"
	propertyOffers      = "/api/properties/%s/offers"
	propertyUpdate      = "/api/properties/%s/update"
	updateOwnershipPath = "/api/properties/update-ownership"
	simulatePath        = "/api/transactions/simulate"
	submitNoUpdatePath  = "/api/transactions/submit-no-update"
	recordSalePath      = "/api/transactions/record-sale"
	transactionsPath    = "/api/transactions"
)

// Error is a non-2xx backend response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend: %d: %s", e.StatusCode, e.Message)
}

var errServiceUnavailable = errors.New("backend temporarily unavailable")

// Client talks to the marketplace backend. Reads are retried with jittered
// backoff; writes are issued exactly once so partial-failure handling stays
// with the caller.
type Client struct {
	log         *logrus.Entry
	baseURL     string
	httpClient  *http.Client
	credentials CredentialProvider
	readRetrier retry.Retrier
}

func NewClient(baseURL string, credentials CredentialProvider) *Client {
	return &Client{
		log:     logrus.StandardLogger().WithField("type", "market/backend/client"),
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		credentials: credentials,
		readRetrier: retry.NewRetrier(
			retry.NonRetriableErrors(context.Canceled),
			retry.RetriableErrors(errServiceUnavailable),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(250*time.Millisecond), 2*time.Second, 0.1),
		),
	}
}

// GetRecentBlockhash fetches the freshness token a settlement transaction
// must reference.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Blockhash, error) {
	var hash solana.Blockhash

	var resp struct {
		Blockhash string `json:"blockhash"`
	}
	if err := c.get(ctx, blockhashPath, &resp); err != nil {
		return hash, err
	}

	hashBytes, err := base58.Decode(resp.Blockhash)
	if err != nil {
		return hash, errors.Wrap(err, "invalid base58 encoded blockhash")
	}
	if len(hashBytes) != len(hash) {
		return hash, errors.Errorf("invalid blockhash length: %d", len(hashBytes))
	}

	copy(hash[:], hashBytes)
	return hash, nil
}

// GetListing fetches the authoritative listing record.
func (c *Client) GetListing(ctx context.Context, propertyID string) (*data.Listing, error) {
	var resp struct {
		Property data.Listing `json:"property"`
	}
	if err := c.get(ctx, fmt.Sprintf(propertyFormat, propertyID), &resp); err != nil {
		return nil, err
	}
	return &resp.Property, nil
}

// GetListingNFTMint fetches the mint of the NFT representing the property.
func (c *Client) GetListingNFTMint(ctx context.Context, propertyID string) (string, error) {
	var resp struct {
		NFTMint string `json:"nft_mint"`
	}
	if err := c.get(ctx, fmt.Sprintf(propertyMintFormat, propertyID), &resp); err != nil {
		return "", err
	}
	return resp.NFTMint, nil
}

// GetOffers fetches all offers recorded against a property.
func (c *Client) GetOffers(ctx context.Context, propertyID string) ([]data.Offer, error) {
	var resp struct {
		Offers []data.Offer `json:"offers"`
	}
	if err := c.get(ctx, fmt.Sprintf(propertyOffers, propertyID), &resp); err != nil {
		return nil, err
	}
	return resp.Offers, nil
}

type CreateOfferRequest struct {
	PropertyID     string    `json:"property_id"`
	BuyerAddress   string    `json:"buyer_address"`
	Amount         uint64    `json:"amount"`
	ExpirationTime time.Time `json:"expiration_time"`

	// TransactionSignature is set when the on-chain-offer profile already
	// submitted a make_offer instruction.
	TransactionSignature string `json:"transaction_signature,omitempty"`
}

// CreateOffer persists a new pending offer.
func (c *Client) CreateOffer(ctx context.Context, req CreateOfferRequest) (*data.Offer, error) {
	var resp struct {
		Offer data.Offer `json:"offer"`
	}
	if err := c.post(ctx, offersPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Offer, nil
}

type RespondToOfferRequest struct {
	Status               data.OfferStatus `json:"status"`
	SellerAddress        string           `json:"seller_address"`
	TransactionSignature string           `json:"transaction_signature"`
}

// RespondToOffer records the seller's accept/reject decision with its
// on-chain proof.
func (c *Client) RespondToOffer(ctx context.Context, offerID string, req RespondToOfferRequest) error {
	return c.post(ctx, fmt.Sprintf(offerRespondFormat, offerID), req, nil)
}

type UpdateListingRequest struct {
	Price       *uint64 `json:"price,omitempty"`
	MetadataURI *string `json:"metadata_uri,omitempty"`
	Active      *bool   `json:"is_active,omitempty"`

	TransactionSignature string `json:"transaction_signature"`
}

// UpdateListing patches the off-chain listing record after an on-chain
// update_property succeeded.
func (c *Client) UpdateListing(ctx context.Context, propertyID string, req UpdateListingRequest) error {
	return c.patch(ctx, fmt.Sprintf(propertyUpdate, propertyID), req, nil)
}

// SimulateTransaction dry-runs a serialized transaction via the backend.
func (c *Client) SimulateTransaction(ctx context.Context, txn solana.Transaction) (solana.SimulationResult, error) {
	req := struct {
		SerializedTransaction string `json:"serialized_transaction"`
	}{
		SerializedTransaction: base64.StdEncoding.EncodeToString(txn.Marshal()),
	}

	var resp struct {
		Success bool     `json:"success"`
		Logs    []string `json:"logs"`
		Error   *string  `json:"error"`
	}
	if err := c.post(ctx, simulatePath, req, &resp); err != nil {
		return solana.SimulationResult{}, err
	}

	result := solana.SimulationResult{Logs: resp.Logs}
	if !resp.Success {
		if resp.Error != nil {
			result.Err = *resp.Error
		} else {
			result.Err = "simulation failed"
		}
	}
	return result, nil
}

// SubmitMetadata travels with a broadcast request for traceability; the
// backend does not act on it.
type SubmitMetadata struct {
	RequestID  string `json:"request_id"`
	PropertyID string `json:"property_id,omitempty"`
	OfferID    string `json:"offer_id,omitempty"`
	Operation  string `json:"operation,omitempty"`
}

// SubmitTransaction broadcasts a fully signed transaction without touching
// any offer or listing records. Reconciliation is an explicit follow-up.
func (c *Client) SubmitTransaction(ctx context.Context, txn solana.Transaction, metadata SubmitMetadata) (string, error) {
	if metadata.RequestID == "" {
		metadata.RequestID = uuid.NewString()
	}

	req := struct {
		SerializedTransaction string         `json:"serialized_transaction"`
		Metadata              SubmitMetadata `json:"metadata"`
	}{
		SerializedTransaction: base64.StdEncoding.EncodeToString(txn.Marshal()),
		Metadata:              metadata,
	}

	var resp struct {
		Signature string `json:"signature"`
	}
	if err := c.post(ctx, submitNoUpdatePath, req, &resp); err != nil {
		return "", err
	}
	return resp.Signature, nil
}

type RecordSaleRequest struct {
	PropertyID           string `json:"property_id"`
	SellerAddress        string `json:"seller"`
	BuyerAddress         string `json:"buyer"`
	Price                uint64 `json:"price"`
	TransactionSignature string `json:"transaction_signature"`
}

// RecordSale appends a sale ledger entry. The transaction signature is the
// idempotency key; re-recording a signature is a no-op server-side.
func (c *Client) RecordSale(ctx context.Context, req RecordSaleRequest) error {
	return c.post(ctx, recordSalePath, req, nil)
}

// GetSales fetches the sale ledger, most recent first.
func (c *Client) GetSales(ctx context.Context) ([]data.SaleRecord, error) {
	var resp struct {
		Transactions []data.SaleRecord `json:"transactions"`
	}
	if err := c.get(ctx, transactionsPath, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

type UpdateOwnershipRequest struct {
	PropertyID           string `json:"property_id"`
	NewOwnerAddress      string `json:"new_owner"`
	OfferID              string `json:"offer_id"`
	TransactionSignature string `json:"transaction_signature"`
}

// UpdateOwnership marks the offer completed and transfers listing
// ownership to the buyer, keyed by the settlement signature.
func (c *Client) UpdateOwnership(ctx context.Context, req UpdateOwnershipRequest) error {
	return c.post(ctx, updateOwnershipPath, req, nil)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	_, err := c.readRetrier.Retry(func() error {
		return c.do(ctx, http.MethodGet, path, nil, out)
	})
	return err
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) patch(ctx context.Context, path string, in, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader = http.NoBody
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	if c.credentials != nil {
		token, err := c.credentials.Token(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to get credential")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.log.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("backend service error")
		return errServiceUnavailable
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := resp.Status
		var apiErr struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			message = apiErr.Message
		}
		return &Error{StatusCode: resp.StatusCode, Message: message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response body")
	}
	return nil
}
