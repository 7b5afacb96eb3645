package lnclient

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/lntypes"
)

// MockInvoice is one invoice handed out by the mock backend, together with
// the preimage a paying client would learn.
type MockInvoice struct {
	PaymentRequest string
	Preimage       lntypes.Preimage
	AmountMsat     uint64
	Memo           string
}

// MockClient is an in-memory Lightning backend for tests and demos. Every
// AddInvoice call generates a fresh random preimage and a fake payment
// request; the preimages are kept around so callers can simulate payment.
type MockClient struct {
	mtx      sync.Mutex
	invoices map[lntypes.Hash]*MockInvoice

	// Err, if set, is returned by every AddInvoice call.
	Err error
}

// A compile time flag to ensure the MockClient satisfies the Client
// interface.
var _ Client = (*MockClient)(nil)

// NewMockClient creates an empty mock backend.
func NewMockClient() *MockClient {
	return &MockClient{
		invoices: make(map[lntypes.Hash]*MockInvoice),
	}
}

// AddInvoice generates a random preimage and returns its hash along with a
// fake payment request.
//
// NOTE: This is part of the Client interface.
func (m *MockClient) AddInvoice(_ context.Context, amountMsat uint64,
	memo string) (string, lntypes.Hash, error) {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.Err != nil {
		return "", lntypes.ZeroHash, m.Err
	}

	var preimage lntypes.Preimage
	if _, err := rand.Read(preimage[:]); err != nil {
		return "", lntypes.ZeroHash, err
	}
	paymentHash := preimage.Hash()

	invoice := &MockInvoice{
		PaymentRequest: fmt.Sprintf("lnbcmock%d", len(m.invoices)+1),
		Preimage:       preimage,
		AmountMsat:     amountMsat,
		Memo:           memo,
	}
	m.invoices[paymentHash] = invoice

	return invoice.PaymentRequest, paymentHash, nil
}

// Invoice returns the stored invoice for the given payment hash, if any.
func (m *MockClient) Invoice(hash lntypes.Hash) (*MockInvoice, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	invoice, ok := m.invoices[hash]
	return invoice, ok
}
