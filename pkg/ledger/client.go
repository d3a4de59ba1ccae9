package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/angelmondragon/rentchain-properties/pkg/config"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
	"github.com/angelmondragon/rentchain-properties/pkg/metrics"
)

// ErrNoListingEvent is returned when a mined listProperty receipt carries no PropertyListed log.
var ErrNoListingEvent = errors.New("receipt has no PropertyListed event")

const defaultCallTimeout = 45 * time.Second

// Backend is what the client needs from a node connection. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Listing carries the fields mirrored on the contract.
type Listing struct {
	PropertyAddress string
	Description     string
	RentPerMonth    int64
	SecurityDeposit int64
}

// Receipt is the mined result of a state-changing call.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Logs        []*types.Log
}

// Property is the contract's view of a listing.
type Property struct {
	ID              int64
	Owner           string
	PropertyAddress string
	Description     string
	RentPerMonth    int64
	SecurityDeposit int64
	IsAvailable     bool
	IsActive        bool
}

// propertyTuple mirrors the getProperty output tuple field for field.
type propertyTuple struct {
	Id              *big.Int
	Owner           common.Address
	PropertyAddress string
	Description     string
	RentPerMonth    *big.Int
	SecurityDeposit *big.Int
	IsAvailable     bool
	IsActive        bool
}

// propertyListedEvent field names must equal the camel-cased ABI argument names.
type propertyListedEvent struct {
	PropertyId   *big.Int
	Owner        common.Address
	RentPerMonth *big.Int
}

// Options configures a Client built on an existing backend.
type Options struct {
	ContractAddress common.Address
	Signer          *bind.TransactOpts
	GasPrice        *big.Int
	GasLimit        uint64
	CallTimeout     time.Duration
	Metrics         *metrics.LedgerMetrics
	Logger          *logger.Logger
}

// Client talks to the property registry contract. Every call runs under its own deadline.
type Client struct {
	backend  Backend
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
	signer   *bind.TransactOpts
	gasPrice *big.Int
	gasLimit uint64
	timeout  time.Duration
	metrics  *metrics.LedgerMetrics
	logg     *logger.Logger
	closeFn  func()

	// sendMu serializes nonce selection and submission for the single signing key.
	sendMu sync.Mutex
}

// Dial connects to the configured JSON-RPC endpoint and binds the registry contract.
func Dial(ctx context.Context, cfg config.LedgerConfig, m *metrics.LedgerMetrics, logg *logger.Logger) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing ledger private key: %w", err)
	}
	chainID := big.NewInt(cfg.ChainID)
	signer, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("building ledger signer: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	eth, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing ledger rpc: %w", err)
	}

	remoteChainID, err := eth.ChainID(dialCtx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("reading ledger chain id: %w", err)
	}
	if remoteChainID.Cmp(chainID) != 0 {
		eth.Close()
		return nil, fmt.Errorf("ledger chain id mismatch: configured %s, node reports %s", chainID, remoteChainID)
	}

	client, err := New(eth, Options{
		ContractAddress: common.HexToAddress(cfg.ContractAddress),
		Signer:          signer,
		GasPrice:        big.NewInt(cfg.GasPriceWei),
		GasLimit:        cfg.GasLimit,
		CallTimeout:     cfg.CallTimeout,
		Metrics:         m,
		Logger:          logg,
	})
	if err != nil {
		eth.Close()
		return nil, err
	}
	client.closeFn = eth.Close

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"contract": client.address.Hex(),
			"signer":   signer.From.Hex(),
			"chain_id": chainID.String(),
		}), "ledger client initialized")
	}
	return client, nil
}

// New binds the registry contract on backend.
func New(backend Backend, opts Options) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("ledger backend required")
	}
	if opts.Signer == nil {
		return nil, fmt.Errorf("ledger signer required")
	}
	if opts.ContractAddress == (common.Address{}) {
		return nil, fmt.Errorf("ledger contract address required")
	}
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parsing registry abi: %w", err)
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Client{
		backend:  backend,
		address:  opts.ContractAddress,
		abi:      parsed,
		contract: bind.NewBoundContract(opts.ContractAddress, parsed, backend, backend, backend),
		signer:   opts.Signer,
		gasPrice: opts.GasPrice,
		gasLimit: opts.GasLimit,
		timeout:  timeout,
		metrics:  opts.Metrics,
		logg:     logg,
	}, nil
}

// Close releases the RPC connection when the client owns it.
func (c *Client) Close() {
	if c != nil && c.closeFn != nil {
		c.closeFn()
	}
}

// SignerAddress is the account that submits transactions.
func (c *Client) SignerAddress() string {
	return c.signer.From.Hex()
}

// ListProperty submits listProperty and waits for it to be mined.
func (c *Client) ListProperty(ctx context.Context, l Listing) (*Receipt, error) {
	rent, deposit, err := amounts(l)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, methodList, l.PropertyAddress, l.Description, rent, deposit)
}

// UpdateProperty submits updateProperty for an already listed property.
func (c *Client) UpdateProperty(ctx context.Context, propertyID int64, l Listing, isAvailable bool) (*Receipt, error) {
	rent, deposit, err := amounts(l)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, methodUpdate, big.NewInt(propertyID), l.PropertyAddress, l.Description, rent, deposit, isAvailable)
}

// DelistProperty submits delistProperty.
func (c *Client) DelistProperty(ctx context.Context, propertyID int64) (*Receipt, error) {
	return c.transact(ctx, methodDelist, big.NewInt(propertyID))
}

// GetProperty reads the on-chain listing.
func (c *Client) GetProperty(ctx context.Context, propertyID int64) (*Property, error) {
	var out []interface{}
	if err := c.call(ctx, methodGet, &out, big.NewInt(propertyID)); err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeLedgerSync, fmt.Sprintf("getProperty returned %d values", len(out)))
	}
	raw := *abi.ConvertType(out[0], new(propertyTuple)).(*propertyTuple)

	id, err := toInt64(raw.Id)
	if err != nil {
		return nil, err
	}
	rent, err := toInt64(raw.RentPerMonth)
	if err != nil {
		return nil, err
	}
	deposit, err := toInt64(raw.SecurityDeposit)
	if err != nil {
		return nil, err
	}
	return &Property{
		ID:              id,
		Owner:           raw.Owner.Hex(),
		PropertyAddress: raw.PropertyAddress,
		Description:     raw.Description,
		RentPerMonth:    rent,
		SecurityDeposit: deposit,
		IsAvailable:     raw.IsAvailable,
		IsActive:        raw.IsActive,
	}, nil
}

// PropertyCount returns the contract's propertyCounter. Ids run from 1 to the counter.
func (c *Client) PropertyCount(ctx context.Context) (int64, error) {
	var out []interface{}
	if err := c.call(ctx, methodCounter, &out); err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, pkgerrors.New(pkgerrors.CodeLedgerSync, fmt.Sprintf("propertyCounter returned %d values", len(out)))
	}
	return toInt64(*abi.ConvertType(out[0], new(*big.Int)).(**big.Int))
}

// ListedPropertyID extracts the ledger id assigned by listProperty from the receipt logs.
func (c *Client) ListedPropertyID(r *Receipt) (int64, error) {
	if r == nil {
		return 0, ErrNoListingEvent
	}
	eventID := c.abi.Events[eventPropertyListed].ID
	for _, lg := range r.Logs {
		if lg == nil || lg.Address != c.address || len(lg.Topics) == 0 || lg.Topics[0] != eventID {
			continue
		}
		var ev propertyListedEvent
		if err := c.contract.UnpackLog(&ev, eventPropertyListed, *lg); err != nil {
			return 0, fmt.Errorf("decoding PropertyListed: %w", err)
		}
		return toInt64(ev.PropertyId)
	}
	return 0, ErrNoListingEvent
}

func (c *Client) transact(ctx context.Context, method string, args ...interface{}) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()

	opts := &bind.TransactOpts{
		From:     c.signer.From,
		Signer:   c.signer.Signer,
		GasPrice: c.gasPrice,
		GasLimit: c.gasLimit,
		Context:  ctx,
	}

	c.sendMu.Lock()
	tx, err := c.contract.Transact(opts, method, args...)
	c.sendMu.Unlock()
	if err != nil {
		return nil, c.fail(ctx, method, start, err)
	}

	ctx = c.logg.WithField(ctx, "tx_hash", tx.Hash().Hex())
	mined, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, c.fail(ctx, method, start, err)
	}
	if mined.Status != types.ReceiptStatusSuccessful {
		c.metrics.Observe(method, metrics.OutcomeReverted, time.Since(start))
		c.logg.Warn(ctx, fmt.Sprintf("ledger %s reverted", method))
		return nil, pkgerrors.New(pkgerrors.CodeLedgerSync, fmt.Sprintf("%s reverted in tx %s", method, tx.Hash().Hex()))
	}

	c.metrics.Observe(method, metrics.OutcomeOK, time.Since(start))
	c.logg.Info(ctx, fmt.Sprintf("ledger %s mined", method))

	receipt := &Receipt{TxHash: mined.TxHash, GasUsed: mined.GasUsed, Logs: mined.Logs}
	if mined.BlockNumber != nil {
		receipt.BlockNumber = mined.BlockNumber.Uint64()
	}
	return receipt, nil
}

func (c *Client) call(ctx context.Context, method string, out *[]interface{}, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()

	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, out, method, args...); err != nil {
		return c.fail(ctx, method, start, err)
	}
	c.metrics.Observe(method, metrics.OutcomeOK, time.Since(start))
	return nil
}

func (c *Client) fail(ctx context.Context, method string, start time.Time, err error) error {
	classified := Classify(method, err)
	outcome := metrics.OutcomeError
	if pkgerrors.IsCode(classified, pkgerrors.CodeLedgerTimeout) {
		outcome = metrics.OutcomeTimeout
	}
	c.metrics.Observe(method, outcome, time.Since(start))
	c.logg.Error(ctx, fmt.Sprintf("ledger %s failed", method), err)
	return classified
}

func amounts(l Listing) (*big.Int, *big.Int, error) {
	if l.RentPerMonth < 0 || l.SecurityDeposit < 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "rent and deposit must not be negative")
	}
	return big.NewInt(l.RentPerMonth), big.NewInt(l.SecurityDeposit), nil
}

func toInt64(v *big.Int) (int64, error) {
	if v == nil {
		return 0, pkgerrors.New(pkgerrors.CodeLedgerSync, "ledger returned an empty integer")
	}
	if !v.IsInt64() {
		return 0, pkgerrors.New(pkgerrors.CodeLedgerSync, fmt.Sprintf("ledger integer %s overflows int64", v))
	}
	return v.Int64(), nil
}
