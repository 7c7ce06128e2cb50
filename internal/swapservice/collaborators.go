package swapservice

import "context"

// InvoiceSettler is the narrow Lightning-node capability the cooperative
// claim path needs: settling a held invoice once the preimage is known.
// Talking to a real node is an external collaborator; this core only
// ever sees it through this interface.
type InvoiceSettler interface {
	SettleInvoice(ctx context.Context, invoice string, preimage []byte) error
}
