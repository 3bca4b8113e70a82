package robokassa

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/parallax/parallax-api/internal/pkg/gateway"
)

const paymentURL = "https://auth.robokassa.ru/Merchant/Index.aspx"

// Config holds RoboKassa configuration
type Config struct {
	MerchantLogin string        // MerchantLogin
	Password1     string        // signs payment initialization
	Password2     string        // verifies ResultURL callbacks
	TestMode      bool          // adds IsTest=1
	HashAlgo      HashAlgorithm // MD5 or SHA256, default SHA256
	Culture       string        // interface language, default "en"
}

// Client builds signed payment redirects. RoboKassa has no session API:
// the checkout is a GET redirect carrying the signature.
type Client struct {
	config Config
}

func NewClient(cfg Config) *Client {
	if cfg.HashAlgo == "" {
		cfg.HashAlgo = HashSHA256
	}
	if cfg.Culture == "" {
		cfg.Culture = "en"
	}
	return &Client{config: cfg}
}

func (c *Client) Code() string { return gateway.ProviderRoboKassa }

func (c *Client) Password2() string { return c.config.Password2 }

func (c *Client) HashAlgo() HashAlgorithm { return c.config.HashAlgo }

// InitiateCheckout returns the signed payment URL for req.
func (c *Client) InitiateCheckout(_ context.Context, req gateway.CheckoutRequest) (*gateway.Checkout, error) {
	if strings.TrimSpace(c.config.MerchantLogin) == "" || strings.TrimSpace(c.config.Password1) == "" {
		return nil, gateway.NewError(c.Code(), gateway.KindNotConfigured, errors.New("merchant login or password #1 is empty"))
	}
	if !req.USDAmount.IsPositive() {
		return nil, gateway.NewError(c.Code(), gateway.KindGatewayError, errors.New("amount must be > 0"))
	}
	if req.InvoiceNo <= 0 {
		return nil, gateway.NewError(c.Code(), gateway.KindGatewayError, errors.New("invoice number must be > 0"))
	}

	outSum := FormatOutSum(req.USDAmount)
	invID := strconv.FormatInt(req.InvoiceNo, 10)
	shp := map[string]string{ShpCorrelation: req.CorrelationID}

	signature, err := Sign(StartSignatureBase(c.config.MerchantLogin, outSum, invID, c.config.Password1, shp), c.config.HashAlgo)
	if err != nil {
		return nil, gateway.NewError(c.Code(), gateway.KindNotConfigured, err)
	}

	params := url.Values{}
	params.Set("MerchantLogin", c.config.MerchantLogin)
	params.Set("OutSum", outSum)
	params.Set("InvId", invID)
	params.Set("Description", req.Description)
	params.Set("SignatureValue", signature)
	params.Set("Culture", c.config.Culture)
	params.Set(ShpCorrelation, req.CorrelationID)
	if req.UserEmail != "" {
		params.Set("Email", req.UserEmail)
	}
	if c.config.TestMode {
		params.Set("IsTest", "1")
	}

	return &gateway.Checkout{RedirectURL: paymentURL + "?" + params.Encode()}, nil
}
