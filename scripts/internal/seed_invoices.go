package internal

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/invoicely/invoicely/internal/api/dto"
	"github.com/invoicely/invoicely/internal/service"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"
)

const (
	DEFAULT_NUM_INVOICES = 50
	SEED_WORKERS         = 8
	WRITES_PER_SEC       = 20
)

var (
	seedClients = []string{"Acme Ltd", "Globex", "Initech", "Umbrella Corp", "Stark Industries"}
	seedItems   = []string{"Design", "Development", "Consulting", "Hosting", "Support retainer"}
	seedMethods = []string{"BANK_TRANSFER", "CASH", "CARD", "CHEQUE"}
)

// invoiceGenerator builds random but plausible invoices and payments
type invoiceGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now time.Time
}

func (g *invoiceGenerator) invoiceRequest(index int) dto.CreateInvoiceRequest {
	clientName := seedClients[index%len(seedClients)]
	invoiceDate := g.now.AddDate(0, 0, -g.rnd.Intn(60))

	items := make([]dto.LineItemRequest, 1+g.rnd.Intn(3))
	for i := range items {
		items[i] = dto.LineItemRequest{
			Description: seedItems[g.rnd.Intn(len(seedItems))],
			Quantity:    decimal.NewFromInt(int64(1 + g.rnd.Intn(5))),
			Rate:        decimal.NewFromInt(int64(100 * (1 + g.rnd.Intn(50)))),
		}
	}

	status := types.InvoiceStatusDraft
	if g.rnd.Intn(3) > 0 {
		status = types.InvoiceStatusSent
	}

	return dto.CreateInvoiceRequest{
		InvoiceDetailsRequest: dto.InvoiceDetailsRequest{
			InvoiceNumber: fmt.Sprintf("SEED-%s-%04d", g.now.Format("20060102"), index+1),
			InvoiceDate:   invoiceDate,
			DueDate:       invoiceDate.AddDate(0, 0, 30),
			TaxRate:       decimal.NewFromInt(int64(g.rnd.Intn(3) * 5)),
			DiscountType:  types.DiscountTypePercentage,
			DiscountValue: decimal.NewFromInt(int64(g.rnd.Intn(2) * 10)),
			Client: dto.ClientRequest{
				Name:  clientName,
				Email: fmt.Sprintf("billing+%d@example.com", index%len(seedClients)),
			},
			Items: items,
		},
		Status: status,
	}
}

// payments splits part or all of total into up to three payments
func (g *invoiceGenerator) payments(invoiceID string, total decimal.Decimal) []dto.CreatePaymentRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !total.IsPositive() || g.rnd.Intn(4) == 0 {
		return nil
	}

	remaining := total
	count := 1 + g.rnd.Intn(3)
	result := make([]dto.CreatePaymentRequest, 0, count)
	for i := 0; i < count && remaining.IsPositive(); i++ {
		amount := remaining
		if i < count-1 {
			amount = remaining.Mul(decimal.NewFromFloat(0.2 + g.rnd.Float64()*0.5)).Round(2)
		}
		if !amount.IsPositive() {
			break
		}
		paidAt := g.now.AddDate(0, 0, -g.rnd.Intn(20))
		result = append(result, dto.CreatePaymentRequest{
			InvoiceID:   invoiceID,
			Amount:      amount,
			Method:      seedMethods[g.rnd.Intn(len(seedMethods))],
			PaymentDate: &paidAt,
		})
		remaining = remaining.Sub(amount)
	}
	return result
}

// SeedInvoices creates demo invoices with payments through the services, so every
// write goes through the ledger. Reads NUM_INVOICES.
func SeedInvoices() error {
	numInvoices := DEFAULT_NUM_INVOICES
	if v := os.Getenv("NUM_INVOICES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid NUM_INVOICES %q", v)
		}
		numInvoices = n
	}

	env, err := newScriptEnv()
	if err != nil {
		return err
	}
	defer env.close()

	ctx := scriptContext(os.Getenv("USER_ID"))
	invoiceService := service.NewInvoiceService(env.params)
	ledgerService := service.NewLedgerService(env.params)
	issuerService := service.NewIssuerService(env.params)

	signature, err := issuerService.GetAdminSignature(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve admin signature: %w", err)
	}

	generator := &invoiceGenerator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now().UTC(),
	}

	env.log.Infow("starting invoice seeding",
		"invoices", numInvoices,
		"workers", SEED_WORKERS,
		"writes_per_sec", WRITES_PER_SEC,
	)

	requests := make([]dto.CreateInvoiceRequest, numInvoices)
	for i := range requests {
		requests[i] = generator.invoiceRequest(i)
	}

	limiter := rate.NewLimiter(rate.Limit(WRITES_PER_SEC), 1)
	var created, paid, failed atomic.Int64
	start := time.Now()

	p := pool.New().WithMaxGoroutines(SEED_WORKERS).WithContext(ctx)
	for _, req := range requests {
		p.Go(func(ctx context.Context) error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}

			inv, err := invoiceService.CreateFullInvoice(ctx, req, signature)
			if err != nil {
				env.log.Errorw("failed to create invoice", "invoice_number", req.InvoiceNumber, "error", err)
				failed.Add(1)
				return nil
			}
			created.Add(1)

			for _, payment := range generator.payments(inv.ID, inv.Total) {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
				if _, err := ledgerService.RecordPayment(ctx, payment); err != nil {
					env.log.Errorw("failed to record payment", "invoice_id", inv.ID, "error", err)
					failed.Add(1)
					continue
				}
				paid.Add(1)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	sweep, err := invoiceService.SweepOverdueInvoices(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep overdue invoices: %w", err)
	}

	env.log.Infow("completed invoice seeding",
		"invoices_created", created.Load(),
		"payments_recorded", paid.Load(),
		"failures", failed.Load(),
		"marked_overdue", sweep.Updated,
		"duration", time.Since(start),
	)
	return nil
}

// ReconcileInvoices compares every invoice with its payment history.
// Drift is only written back when REPAIR is true.
func ReconcileInvoices() error {
	repair, _ := strconv.ParseBool(os.Getenv("REPAIR"))

	env, err := newScriptEnv()
	if err != nil {
		return err
	}
	defer env.close()

	resp, err := service.NewLedgerService(env.params).ReconcileAll(scriptContext(os.Getenv("USER_ID")), repair)
	if err != nil {
		return err
	}

	for _, report := range resp.Reports {
		if !report.Drift {
			continue
		}
		fmt.Printf("%s stored paid=%s status=%s derived paid=%s status=%s repaired=%t\n",
			report.InvoiceID,
			report.Stored.AmountPaid, report.Stored.Status,
			report.Derived.AmountPaid, report.Derived.Status,
			report.Repaired,
		)
	}
	fmt.Printf("checked=%d drifted=%d repaired=%d\n", resp.Checked, resp.Drifted, resp.Repaired)
	return nil
}
