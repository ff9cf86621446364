package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/tutu-network/credits/internal/domain"
	"github.com/tutu-network/credits/internal/infra/observability"
)

// IndexerGateway looks up transfers of one token through a transaction
// indexer that speaks a small JSON protocol:
//
//	GET {indexer}/tx/{id}        → {"sender":"…","recipient":"…","quantity":"1000"}
//	GET {indexer}/tx/{id}/status → {"status":"confirmed","blockHeight":1234}
//
// An HTTP 404 means the indexer has not seen the transaction.
type IndexerGateway struct {
	baseURL string
	token   domain.Token
	client  *client
}

var _ domain.TransactionGateway = (*IndexerGateway)(nil)

// NewIndexerGateway creates a gateway for token backed by the indexer at baseURL.
func NewIndexerGateway(token domain.Token, baseURL string, cfg ClientConfig, logger *zap.Logger, m *observability.Metrics) *IndexerGateway {
	return &IndexerGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  newClient("indexer."+string(token), cfg, logger, m),
	}
}

type indexerTx struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Quantity  string `json:"quantity"`
}

type indexerStatus struct {
	Status      string `json:"status"`
	BlockHeight int64  `json:"blockHeight"`
}

// Transaction returns the transfer txID refers to, in the token's base unit.
func (g *IndexerGateway) Transaction(ctx context.Context, txID string) (domain.TransactionInfo, error) {
	body, err := g.client.get(ctx, g.txURL(txID, ""))
	if err != nil {
		if isNotFound(err) {
			return domain.TransactionInfo{}, domain.ErrTransactionNotFound(txID)
		}
		return domain.TransactionInfo{}, err
	}
	var raw indexerTx
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.TransactionInfo{}, g.client.unavailable(fmt.Errorf("decode transaction: %w", err))
	}
	qty, err := domain.ParseWinc(raw.Quantity)
	if err != nil {
		return domain.TransactionInfo{}, domain.ErrInvalidCryptoPayment(txID, "malformed quantity")
	}
	return domain.TransactionInfo{
		SenderAddress:    raw.Sender,
		RecipientAddress: raw.Recipient,
		Quantity:         qty,
	}, nil
}

// TransactionStatus reports whether txID is confirmed.
func (g *IndexerGateway) TransactionStatus(ctx context.Context, txID string) (domain.TransactionStatus, error) {
	body, err := g.client.get(ctx, g.txURL(txID, "/status"))
	if err != nil {
		if isNotFound(err) {
			return domain.TransactionStatus{Status: domain.TxStatusNotFound}, nil
		}
		return domain.TransactionStatus{}, err
	}
	var raw indexerStatus
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.TransactionStatus{}, g.client.unavailable(fmt.Errorf("decode status: %w", err))
	}
	switch domain.TxStatus(raw.Status) {
	case domain.TxStatusConfirmed:
		return domain.TransactionStatus{Status: domain.TxStatusConfirmed, BlockHeight: raw.BlockHeight}, nil
	case domain.TxStatusNotFound:
		return domain.TransactionStatus{Status: domain.TxStatusNotFound}, nil
	default:
		return domain.TransactionStatus{Status: domain.TxStatusPending}, nil
	}
}

func (g *IndexerGateway) txURL(txID, suffix string) string {
	return g.baseURL + "/tx/" + url.PathEscape(txID) + suffix
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}
