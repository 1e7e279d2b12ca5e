package workflow

import (
	"context"
	"testing"

	"github.com/Vatscode/Mini-ERP/netsuite"
	"github.com/Vatscode/Mini-ERP/utils"
)

type fakeGateway struct {
	availability []netsuite.ItemAvailability
	availErr     error

	pushed     [][]netsuite.InventoryDelta
	pushErr    error
	workOrders []netsuite.WorkOrderRequest
	woErr      error
}

func (f *fakeGateway) GetItemAvailability(ctx context.Context, skus []string) ([]netsuite.ItemAvailability, error) {
	if f.availErr != nil {
		return nil, f.availErr
	}
	return f.availability, nil
}

func (f *fakeGateway) CreateWorkOrder(ctx context.Context, req netsuite.WorkOrderRequest) (string, error) {
	if f.woErr != nil {
		return "", f.woErr
	}
	f.workOrders = append(f.workOrders, req)
	return "WO-1", nil
}

func (f *fakeGateway) UpdateWorkOrderStatus(ctx context.Context, externalId string, status string) error {
	return nil
}

func (f *fakeGateway) PushInventory(ctx context.Context, deltas []netsuite.InventoryDelta) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushed = append(f.pushed, deltas)
	return nil
}

func TestCheckAvailability_BothSidesSufficient(t *testing.T) {
	recipe, ingredients := chocolateRecipe()
	gateway := &fakeGateway{availability: []netsuite.ItemAvailability{
		{Sku: "ING-COCOA", Available: dec("100")},
		{Sku: "ING-SUGAR", Available: dec("100")},
	}}
	reqs, err := CheckAvailability(context.Background(), gateway, recipe, ingredients, dec("100"))
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("got %d requirements, want 2", len(reqs))
	}
}

func TestCheckAvailability_LocalShortfallWinsBeforeRemoteCall(t *testing.T) {
	recipe, ingredients := chocolateRecipe()
	ingredients[1].Stock = dec("0.1")
	// Remote would error; the local check must fail first without calling it.
	gateway := &fakeGateway{availErr: utils.NewAppError(utils.KindRemoteUnavailable, "down")}

	_, err := CheckAvailability(context.Background(), gateway, recipe, ingredients, dec("100"))
	if utils.KindOf(err) != utils.KindInsufficientStock {
		t.Fatalf("kind = %s, want InsufficientStock", utils.KindOf(err))
	}
}

func TestCheckAvailability_RemoteShortfall(t *testing.T) {
	recipe, ingredients := chocolateRecipe()
	gateway := &fakeGateway{availability: []netsuite.ItemAvailability{
		{Sku: "ING-COCOA", Available: dec("0.5")},
		{Sku: "ING-SUGAR", Available: dec("100")},
	}}
	_, err := CheckAvailability(context.Background(), gateway, recipe, ingredients, dec("100"))
	if utils.KindOf(err) != utils.KindInsufficientRemoteStock {
		t.Fatalf("kind = %s, want InsufficientRemoteStock", utils.KindOf(err))
	}
}

// A remote outage during the availability check is a hard failure: stock must
// not move while the remote view is unknown.
func TestCheckAvailability_RemoteOutageIsHardFailure(t *testing.T) {
	recipe, ingredients := chocolateRecipe()
	gateway := &fakeGateway{availErr: utils.NewAppError(utils.KindRemoteUnavailable, "down")}
	_, err := CheckAvailability(context.Background(), gateway, recipe, ingredients, dec("100"))
	if utils.KindOf(err) != utils.KindRemoteUnavailable {
		t.Fatalf("kind = %s, want RemoteUnavailable", utils.KindOf(err))
	}
}
