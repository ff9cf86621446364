package oracle

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tutu-network/credits/internal/domain"
	"github.com/tutu-network/credits/internal/infra/observability"
)

// GatewayBytesOracle prices storage by asking a network gateway.
//
//	GET {gateway}/price/{bytes} → "1048576"
type GatewayBytesOracle struct {
	baseURL string
	client  *client
}

var _ domain.BytesToCreditOracle = (*GatewayBytesOracle)(nil)

// NewGatewayBytesOracle creates a bytes oracle for the gateway at baseURL.
func NewGatewayBytesOracle(baseURL string, cfg ClientConfig, logger *zap.Logger, m *observability.Metrics) *GatewayBytesOracle {
	return &GatewayBytesOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newClient("gateway", cfg, logger, m),
	}
}

// CreditsForBytes returns the network price of bytes in winc.
func (o *GatewayBytesOracle) CreditsForBytes(ctx context.Context, bytes int64) (domain.Winc, error) {
	body, err := o.client.get(ctx, fmt.Sprintf("%s/price/%d", o.baseURL, bytes))
	if err != nil {
		return domain.Winc{}, err
	}
	w, err := domain.ParseWinc(strings.TrimSpace(string(body)))
	if err != nil {
		return domain.Winc{}, o.client.unavailable(fmt.Errorf("decode price: %w", err))
	}
	return w, nil
}
