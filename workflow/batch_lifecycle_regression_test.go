package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Vatscode/Mini-ERP/config"
	"github.com/Vatscode/Mini-ERP/jobs"
	"github.com/Vatscode/Mini-ERP/models"
	"github.com/Vatscode/Mini-ERP/netsuite"
	"github.com/Vatscode/Mini-ERP/utils"
	"github.com/Vatscode/Mini-ERP/workflow"
	"github.com/shopspring/decimal"
)

func TestBatchLifecycle_RoundTrip(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "minierp_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserNameInContext(ctx, "test")
	ctx = utils.SetCorrelationIdInContext(ctx, "it-batch-lifecycle")

	cocoa, err := models.CreateIngredient(ctx, models.NewIngredient{
		Name: "Cocoa Powder", Sku: "ING-COCOA", Unit: "kg",
		Stock: dec("50"), MinStock: dec("10"),
	})
	if err != nil {
		t.Fatalf("CreateIngredient cocoa: %v", err)
	}
	sugar, err := models.CreateIngredient(ctx, models.NewIngredient{
		Name: "Sugar", Sku: "ING-SUGAR", Unit: "kg",
		Stock: dec("80"), MinStock: dec("20"),
	})
	if err != nil {
		t.Fatalf("CreateIngredient sugar: %v", err)
	}
	product, err := models.CreateProduct(ctx, models.NewProduct{
		Name: "Dark Chocolate Bar", Sku: "PROD-CHOC-DARK",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	recipe, err := models.CreateRecipe(ctx, models.NewRecipe{
		Name: "Dark Chocolate 70%", ProductId: product.ID, Yield: dec("100"),
		Items: []models.NewRecipeItem{
			{IngredientId: cocoa.ID, Quantity: dec("0.7")},
			{IngredientId: sugar.ID, Quantity: dec("0.3")},
		},
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	gateway := &itGateway{availability: []netsuite.ItemAvailability{
		{Sku: "ING-COCOA", Available: dec("1000")},
		{Sku: "ING-SUGAR", Available: dec("1000")},
	}}

	// Create: stock moves, ledger written, work order mirrored.
	result, err := workflow.CreateBatch(ctx, gateway, models.NewBatch{
		RecipeId: recipe.ID, PlannedQuantity: dec("100"),
	}, "test")
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	batch := result.Batch
	if !regexp.MustCompile(`^BATCH-\d{8}-\d{4}$`).MatchString(batch.BatchNumber) {
		t.Fatalf("batch number %q is malformed", batch.BatchNumber)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}

	cocoaNow, _ := models.GetIngredient(ctx, cocoa.ID)
	if !cocoaNow.Stock.Equal(dec("49.3")) {
		t.Fatalf("cocoa stock = %s, want 49.3", cocoaNow.Stock)
	}
	sugarNow, _ := models.GetIngredient(ctx, sugar.ID)
	if !sugarNow.Stock.Equal(dec("79.7")) {
		t.Fatalf("sugar stock = %s, want 79.7", sugarNow.Stock)
	}

	db := config.GetDB()
	inputs, err := models.BatchInputTransactions(db, ctx, batch.ID)
	if err != nil || len(inputs) != 2 {
		t.Fatalf("ledger rows = %d (%v), want 2", len(inputs), err)
	}
	wo, err := models.GetWorkOrderByBatch(ctx, batch.ID)
	if err != nil || wo.ExternalId != "WO-1" {
		t.Fatalf("work order mirror = %+v (%v)", wo, err)
	}
	if len(gateway.pushed) != 1 {
		t.Fatalf("inventory pushes = %d, want 1", len(gateway.pushed))
	}

	// Lifecycle: pending -> processing -> completed credits the product.
	if _, err := workflow.UpdateBatchStatus(ctx, gateway, batch.ID, models.BatchStatusUpdate{
		Status: models.BatchStatusProcessing,
	}, "test"); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	actual := dec("95")
	if _, err := workflow.UpdateBatchStatus(ctx, gateway, batch.ID, models.BatchStatusUpdate{
		Status: models.BatchStatusCompleted, ActualQuantity: &actual, QcStatus: models.QcStatusPassed,
	}, "test"); err != nil {
		t.Fatalf("to completed: %v", err)
	}
	productNow, _ := models.GetProduct(ctx, product.ID)
	if !productNow.Stock.Equal(dec("95")) {
		t.Fatalf("product stock = %s, want 95", productNow.Stock)
	}
	if _, err := workflow.UpdateBatchStatus(ctx, gateway, batch.ID, models.BatchStatusUpdate{
		Status: models.BatchStatusProcessing,
	}, "test"); utils.KindOf(err) != utils.KindInvalidTransition {
		t.Fatalf("completed batch accepted a transition: %v", err)
	}

	// Completing without an actual quantity must fail before anything moves.
	second, err := workflow.CreateBatch(ctx, gateway, models.NewBatch{
		RecipeId: recipe.ID, PlannedQuantity: dec("50"),
	}, "test")
	if err != nil {
		t.Fatalf("second CreateBatch: %v", err)
	}
	if _, err := workflow.UpdateBatchStatus(ctx, gateway, second.Batch.ID, models.BatchStatusUpdate{
		Status: models.BatchStatusProcessing,
	}, "test"); err != nil {
		t.Fatalf("second to processing: %v", err)
	}
	if _, err := workflow.UpdateBatchStatus(ctx, gateway, second.Batch.ID, models.BatchStatusUpdate{
		Status: models.BatchStatusCompleted,
	}, "test"); utils.KindOf(err) != utils.KindValidation {
		t.Fatalf("completion without actual quantity: %v", err)
	}

	// Delete restores exactly the consumed quantities.
	if _, err := workflow.DeleteBatch(ctx, gateway, second.Batch.ID, "test"); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	cocoaNow, _ = models.GetIngredient(ctx, cocoa.ID)
	if !cocoaNow.Stock.Equal(dec("49.3")) {
		t.Fatalf("cocoa stock after delete = %s, want 49.3", cocoaNow.Stock)
	}
	if _, err := models.GetBatch(ctx, second.Batch.ID); utils.KindOf(err) != utils.KindNotFound {
		t.Fatalf("deleted batch still readable: %v", err)
	}
	var reversals int64
	db.Model(&models.InventoryTransaction{}).
		Where("batch_id = ? AND type = ?", second.Batch.ID, models.TransactionTypeReversal).
		Count(&reversals)
	if reversals != 2 {
		t.Fatalf("reversal ledger rows = %d, want 2", reversals)
	}

	// Two concurrent completes may both observe processing; exactly one may
	// credit the product and append the output row.
	race, err := workflow.CreateBatch(ctx, gateway, models.NewBatch{
		RecipeId: recipe.ID, PlannedQuantity: dec("40"),
	}, "test")
	if err != nil {
		t.Fatalf("race CreateBatch: %v", err)
	}
	if _, err := workflow.UpdateBatchStatus(ctx, gateway, race.Batch.ID, models.BatchStatusUpdate{
		Status: models.BatchStatusProcessing,
	}, "test"); err != nil {
		t.Fatalf("race to processing: %v", err)
	}
	raceActual := dec("10")
	errCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := workflow.UpdateBatchStatus(ctx, gateway, race.Batch.ID, models.BatchStatusUpdate{
				Status: models.BatchStatusCompleted, ActualQuantity: &raceActual,
			}, "test")
			errCh <- err
		}()
	}
	rejected := 0
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			if utils.KindOf(err) != utils.KindInvalidTransition {
				t.Fatalf("concurrent complete error kind = %s, want InvalidTransition", utils.KindOf(err))
			}
			rejected++
		}
	}
	if rejected != 1 {
		t.Fatalf("concurrent completes rejected = %d, want exactly 1", rejected)
	}
	productNow, _ = models.GetProduct(ctx, product.ID)
	if !productNow.Stock.Equal(dec("105")) {
		t.Fatalf("product stock after concurrent completes = %s, want 105", productNow.Stock)
	}
	var outputs int64
	db.Model(&models.InventoryTransaction{}).
		Where("batch_id = ? AND type = ?", race.Batch.ID, models.TransactionTypeProductionOutput).
		Count(&outputs)
	if outputs != 1 {
		t.Fatalf("output ledger rows = %d, want 1", outputs)
	}

	// Insufficient local stock fails atomically, no shell batch left behind.
	var before int64
	db.Model(&models.Batch{}).Count(&before)
	_, err = workflow.CreateBatch(ctx, gateway, models.NewBatch{
		RecipeId: recipe.ID, PlannedQuantity: dec("100000"),
	}, "test")
	if utils.KindOf(err) != utils.KindInsufficientStock {
		t.Fatalf("kind = %s, want InsufficientStock", utils.KindOf(err))
	}
	var after int64
	db.Model(&models.Batch{}).Count(&after)
	if before != after {
		t.Fatalf("batch count changed on failed create: %d -> %d", before, after)
	}

	// Push failure defers to the outbox; the dispatcher drains it once the
	// remote recovers.
	gateway.pushErr = utils.NewAppError(utils.KindRemoteUnavailable, "down")
	third, err := workflow.CreateBatch(ctx, gateway, models.NewBatch{
		RecipeId: recipe.ID, PlannedQuantity: dec("10"),
	}, "test")
	if err != nil {
		t.Fatalf("third CreateBatch: %v", err)
	}
	if len(third.Warnings) == 0 {
		t.Fatal("expected a deferred-push warning")
	}
	var pending int64
	db.Model(&models.RemotePush{}).Where("status = ?", models.RemotePushStatusPending).Count(&pending)
	if pending != 1 {
		t.Fatalf("pending outbox rows = %d, want 1", pending)
	}

	gateway.pushErr = nil
	dispatcher := jobs.NewDispatcher(db, config.GetLogger(), gateway)
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		dispatcher.DispatchOnce(ctx)
		var succeeded int64
		db.Model(&models.RemotePush{}).Where("status = ?", models.RemotePushStatusSucceeded).Count(&succeeded)
		if succeeded == 1 {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatal("outbox row never reached SUCCEEDED")
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("minierp-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("minierp-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=minierp_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type itGateway struct {
	availability []netsuite.ItemAvailability
	pushErr      error
	pushed       [][]netsuite.InventoryDelta
}

func (g *itGateway) GetItemAvailability(ctx context.Context, skus []string) ([]netsuite.ItemAvailability, error) {
	return g.availability, nil
}

func (g *itGateway) CreateWorkOrder(ctx context.Context, req netsuite.WorkOrderRequest) (string, error) {
	return "WO-1", nil
}

func (g *itGateway) UpdateWorkOrderStatus(ctx context.Context, externalId string, status string) error {
	return nil
}

func (g *itGateway) PushInventory(ctx context.Context, deltas []netsuite.InventoryDelta) error {
	if g.pushErr != nil {
		return g.pushErr
	}
	g.pushed = append(g.pushed, deltas)
	return nil
}
