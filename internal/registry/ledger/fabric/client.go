// Package fabric implements the ledger client against a Hyperledger Fabric
// network using the fabric-sdk-go gateway.
package fabric

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	fabstatus "github.com/hyperledger/fabric-sdk-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"

	apperrors "github.com/terrachain/registry/internal/platform/errors"
	"github.com/terrachain/registry/internal/registry/domain/event"
	"github.com/terrachain/registry/internal/registry/ledger"
)

const defaultCommitTimeout = 2 * time.Minute

// Options configure the Fabric gateway connection.
type Options struct {
	// ConnectionProfile is the path to the network connection profile YAML.
	ConnectionProfile string
	// WalletPath is the file-system wallet directory.
	WalletPath string
	// Identity is the wallet label used to sign transactions.
	Identity string
	// MSPID, CertPath and KeyPath enroll Identity into the wallet when the
	// wallet does not hold it yet.
	MSPID    string
	CertPath string
	KeyPath  string
	// Channel and Contract locate the registry chaincode.
	Channel  string
	Contract string
	// CommitTimeout bounds AwaitConfirmation (defaults to 2m).
	CommitTimeout time.Duration
}

// Client talks to the registry chaincode through a Fabric gateway.
type Client struct {
	gw            *gateway.Gateway
	network       *gateway.Network
	contract      *gateway.Contract
	commitTimeout time.Duration
}

var _ ledger.Client = (*Client)(nil)

// Connect opens the gateway connection and resolves the registry contract.
func Connect(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.ConnectionProfile) == "" {
		return nil, fmt.Errorf("connection profile is required")
	}
	if strings.TrimSpace(opts.Channel) == "" || strings.TrimSpace(opts.Contract) == "" {
		return nil, fmt.Errorf("channel and contract are required")
	}
	identity := strings.TrimSpace(opts.Identity)
	if identity == "" {
		identity = "registryUser"
	}

	wallet, err := gateway.NewFileSystemWallet(opts.WalletPath)
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	if !wallet.Exists(identity) {
		if err := enrollIdentity(wallet, identity, opts); err != nil {
			return nil, fmt.Errorf("enroll identity %s: %w", identity, err)
		}
	}

	gw, err := gateway.Connect(
		gateway.WithConfig(config.FromFile(filepath.Clean(opts.ConnectionProfile))),
		gateway.WithIdentity(wallet, identity),
	)
	if err != nil {
		return nil, fmt.Errorf("connect gateway: %w", err)
	}

	network, err := gw.GetNetwork(opts.Channel)
	if err != nil {
		gw.Close()
		return nil, fmt.Errorf("get network %s: %w", opts.Channel, err)
	}

	commitTimeout := opts.CommitTimeout
	if commitTimeout <= 0 {
		commitTimeout = defaultCommitTimeout
	}

	return &Client{
		gw:            gw,
		network:       network,
		contract:      network.GetContract(opts.Contract),
		commitTimeout: commitTimeout,
	}, nil
}

// Close releases the gateway connection.
func (c *Client) Close() {
	if c == nil || c.gw == nil {
		return
	}
	c.gw.Close()
}

// Submit sends a transaction through the gateway. The gateway API confirms
// synchronously, so the submission runs in a goroutine and the outcome
// (including the confirmed event decoded from the chaincode response) is
// delivered on the pending handle.
func (c *Client) Submit(ctx context.Context, action ledger.Action, args ledger.Args, signer string) (ledger.PendingTx, error) {
	if err := ctx.Err(); err != nil {
		return ledger.PendingTx{}, err
	}
	if c == nil || c.contract == nil {
		return ledger.PendingTx{}, ledger.ErrUnavailable
	}

	// The gateway signs with the wallet identity; signer selects the acting
	// account recorded by the contract and travels as the first argument.
	txArgs := append(ledger.Args{signer}, args...)

	result := make(chan ledger.Outcome, 1)
	go func() {
		payload, err := c.contract.SubmitTransaction(string(action), txArgs...)
		if err != nil {
			result <- ledger.Outcome{Err: classify(err)}
			return
		}
		evt, err := event.Decode(payload)
		if err != nil {
			result <- ledger.Outcome{Err: apperrors.Wrap(
				apperrors.CodeLedgerRejected,
				fmt.Sprintf("decode %s confirmation: %v", action, err),
				err,
			)}
			return
		}
		result <- ledger.Outcome{Event: evt}
	}()

	return ledger.PendingTx{Result: result}, nil
}

// AwaitConfirmation blocks until the submitted transaction commits, fails, or
// the wait is abandoned.
func (c *Client) AwaitConfirmation(ctx context.Context, tx ledger.PendingTx) (event.Event, error) {
	if tx.Result == nil {
		return event.Event{}, fmt.Errorf("pending transaction has no result channel")
	}
	timer := time.NewTimer(c.commitTimeout)
	defer timer.Stop()
	select {
	case outcome := <-tx.Result:
		if outcome.Err != nil {
			return event.Event{}, outcome.Err
		}
		return outcome.Event, nil
	case <-timer.C:
		return event.Event{}, ledger.ErrTimedOut
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	}
}

// Subscribe registers a chaincode event listener and adapts it to the
// confirmed-event stream. Fabric redelivers events after reconnection, which
// satisfies (and requires) at-least-once handling downstream.
func (c *Client) Subscribe(ctx context.Context, filter ledger.EventFilter) (<-chan event.Event, error) {
	if c == nil || c.contract == nil {
		return nil, ledger.ErrUnavailable
	}

	registration, notifier, err := c.contract.RegisterEvent(eventPattern(filter))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeLedgerUnavailable, "register event listener", err)
	}

	out := make(chan event.Event)
	go func() {
		defer close(out)
		defer c.contract.Unregister(registration)
		for {
			select {
			case <-ctx.Done():
				return
			case ccEvent, ok := <-notifier:
				if !ok {
					return
				}
				evt, err := event.Decode(ccEvent.Payload)
				if err != nil {
					// Malformed payloads cannot be applied; skip rather
					// than stall the stream.
					continue
				}
				if !filter.Matches(evt.Type) {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// HasRole evaluates the contract's role query against ledger-fresh state.
func (c *Client) HasRole(ctx context.Context, account, role string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	payload, err := c.contract.EvaluateTransaction("HasRole", role, account)
	if err != nil {
		return false, classify(err)
	}
	return strings.EqualFold(strings.TrimSpace(string(payload)), "true"), nil
}

// QueryState evaluates a read-only contract view.
func (c *Client) QueryState(ctx context.Context, view string, args ledger.Args) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := c.contract.EvaluateTransaction(view, args...)
	if err != nil {
		return nil, classify(err)
	}
	return payload, nil
}

// enrollIdentity loads X.509 material into the wallet.
func enrollIdentity(wallet *gateway.Wallet, label string, opts Options) error {
	cert, err := os.ReadFile(filepath.Clean(opts.CertPath))
	if err != nil {
		return err
	}
	key, err := os.ReadFile(filepath.Clean(opts.KeyPath))
	if err != nil {
		return err
	}
	return wallet.Put(label, gateway.NewX509Identity(opts.MSPID, string(cert), string(key)))
}

// eventPattern builds the chaincode event regex for a subscription filter.
func eventPattern(filter ledger.EventFilter) string {
	if len(filter.Types) == 0 {
		return "^(Property|Transfer|Dispute).*"
	}
	names := make([]string, 0, len(filter.Types))
	for _, t := range filter.Types {
		names = append(names, string(t))
	}
	return "^(" + strings.Join(names, "|") + ")$"
}

// classify maps gateway errors onto the ledger error taxonomy: chaincode and
// endorsement failures are definitive rejections; everything else is treated
// as transient unavailability.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if s, ok := fabstatus.FromError(err); ok {
		switch s.Group {
		case fabstatus.ChaincodeStatus, fabstatus.EndorserServerStatus:
			return apperrors.Wrap(apperrors.CodeLedgerRejected, s.Message, err)
		}
	}
	return apperrors.Wrap(apperrors.CodeLedgerUnavailable, err.Error(), err)
}
