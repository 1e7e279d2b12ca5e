package netsuite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/governance"
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/shopspring/decimal"
)

const restletPath = "/app/site/hosting/restlet.nl"

// Restlet script/deployment ids on the remote side.
const (
	scriptInventorySync    = "customscript_inventory_sync"
	deployInventorySync    = "customdeploy_inventory_sync"
	scriptCreateWorkOrder  = "customscript_create_work_order"
	deployCreateWorkOrder  = "customdeploy_create_work_order"
	scriptItemAvailability = "customscript_item_availability"
	deployItemAvailability = "customdeploy_item_availability"
	scriptUpdateWorkOrder  = "customscript_update_work_order"
	deployUpdateWorkOrder  = "customdeploy_update_work_order"
)

// ItemAvailability is one remote item's on-hand quantity.
type ItemAvailability struct {
	Sku       string          `json:"sku"`
	Available decimal.Decimal `json:"available"`
}

// WorkOrderComponent is one recipe line scaled to the batch, as the remote
// work order expects it.
type WorkOrderComponent struct {
	Item     string          `json:"item"`
	Quantity decimal.Decimal `json:"quantity"`
}

type WorkOrderRequest struct {
	BatchNumber string               `json:"batch_number"`
	Item        string               `json:"item"`
	Quantity    decimal.Decimal      `json:"quantity"`
	Components  []WorkOrderComponent `json:"components"`
}

// InventoryDelta is one signed stock adjustment, keyed by the remote item id.
// Quantity stays a string end to end so the remote sees exactly what the
// outbox row recorded.
type InventoryDelta struct {
	Item     string `json:"item"`
	Quantity string `json:"quantity"`
}

// Gateway is the remote operations surface. workflow and jobs depend on this
// interface so tests can substitute a fake.
type Gateway interface {
	GetItemAvailability(ctx context.Context, skus []string) ([]ItemAvailability, error)
	CreateWorkOrder(ctx context.Context, req WorkOrderRequest) (externalId string, err error)
	UpdateWorkOrderStatus(ctx context.Context, externalId string, status string) error
	PushInventory(ctx context.Context, deltas []InventoryDelta) error
}

type Client struct {
	cfg    config.NetSuiteConfig
	signer signer
	http   *http.Client
}

func NewClient(cfg config.NetSuiteConfig) *Client {
	return &Client{
		cfg:    cfg,
		signer: signer{cfg: cfg},
		http:   &http.Client{Timeout: cfg.Timeout},
	}
}

// restletResponse is the envelope every restlet returns. A 200 with
// success=false is a business rejection, not an outage.
type restletResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) call(ctx context.Context, method string, script string, deploy string, body any) (json.RawMessage, error) {
	if err := governance.Consume(ctx, governance.OpRemote); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("script", script)
	query.Set("deploy", deploy)
	endpoint := c.cfg.BaseURL + restletPath

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint+"?"+query.Encode(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.signer.authorizationHeader(method, endpoint, query, time.Now()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, utils.WrapAppError(utils.KindRemoteUnavailable, "external system unreachable", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return nil, utils.NewAppError(utils.KindRemoteUnavailable,
			fmt.Sprintf("external system error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if resp.StatusCode >= 400 {
		return nil, utils.NewAppError(utils.KindRemoteRejected,
			fmt.Sprintf("external system rejected request (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var parsed restletResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, utils.WrapAppError(utils.KindRemoteUnavailable, "malformed response from external system", err)
	}
	if !parsed.Success {
		return nil, utils.NewAppError(utils.KindRemoteRejected, parsed.Message)
	}
	return parsed.Data, nil
}

func (c *Client) GetItemAvailability(ctx context.Context, skus []string) ([]ItemAvailability, error) {
	body := map[string]any{"skus": strings.Join(skus, ",")}
	data, err := c.call(ctx, http.MethodPost, scriptItemAvailability, deployItemAvailability, body)
	if err != nil {
		return nil, err
	}
	var items []ItemAvailability
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, utils.WrapAppError(utils.KindRemoteUnavailable, "malformed availability response", err)
	}
	return items, nil
}

func (c *Client) CreateWorkOrder(ctx context.Context, req WorkOrderRequest) (string, error) {
	data, err := c.call(ctx, http.MethodPost, scriptCreateWorkOrder, deployCreateWorkOrder, req)
	if err != nil {
		return "", err
	}
	var result struct {
		WorkOrderId string `json:"work_order_id"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", utils.WrapAppError(utils.KindRemoteUnavailable, "malformed work order response", err)
	}
	if result.WorkOrderId == "" {
		return "", utils.NewAppError(utils.KindRemoteRejected, "external system returned no work order id")
	}
	return result.WorkOrderId, nil
}

func (c *Client) UpdateWorkOrderStatus(ctx context.Context, externalId string, status string) error {
	body := map[string]any{
		"workOrderId": externalId,
		"status":      status,
	}
	_, err := c.call(ctx, http.MethodPut, scriptUpdateWorkOrder, deployUpdateWorkOrder, body)
	return err
}

func (c *Client) PushInventory(ctx context.Context, deltas []InventoryDelta) error {
	body := map[string]any{"items": deltas}
	_, err := c.call(ctx, http.MethodPost, scriptInventorySync, deployInventorySync, body)
	return err
}
