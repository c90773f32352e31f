package cmd

import (
	"errors"
	"fmt"

	httpin "orderchain/internal/adapters/in/http"
	"orderchain/internal/adapters/out/kafka"
	"orderchain/internal/adapters/out/keyring"
	"orderchain/internal/adapters/out/memory"
	"orderchain/internal/adapters/out/peerhttp"
	"orderchain/internal/adapters/out/postgres"
	"orderchain/internal/adapters/out/postgres/ledgerrepo"
	"orderchain/internal/core/application/commit"
	"orderchain/internal/core/application/lifecycle"
	"orderchain/internal/core/application/peer"
	"orderchain/internal/core/application/quorum"
	"orderchain/internal/core/application/usecases/commands"
	"orderchain/internal/core/application/usecases/queries"
	"orderchain/internal/core/ports"
	"orderchain/internal/jobs"
	"orderchain/internal/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ledger is what a ledger adapter offers the node.
type ledger interface {
	ports.Ledger
	ports.LedgerHistory
}

// CompositionRoot wires one node: its keys, its vault, the ledger, the
// messaging towards peers and the use cases on top.
type CompositionRoot struct {
	cfg        Config
	gormDB     *gorm.DB
	logger     *zap.Logger
	identity   *keyring.Keyring
	uowFactory ports.UnitOfWorkFactory
	ledger     ledger
	acceptor   *peer.Acceptor
	messenger  ports.PeerMessenger
	writer     kafka.MessageWriter
	executor   *lifecycle.Orchestrator
}

// NewCompositionRoot builds the node. ledgerDB holds the ledger tables and
// may be nil when they live next to the vault in gormDB.
func NewCompositionRoot(cfg Config, gormDB, ledgerDB *gorm.DB, log *zap.Logger) (*CompositionRoot, error) {
	if gormDB == nil {
		return nil, errors.New("gorm db is required")
	}
	if ledgerDB == nil {
		ledgerDB = gormDB
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &CompositionRoot{
		cfg:        cfg,
		gormDB:     gormDB,
		logger:     log,
		uowFactory: postgres.NewGormUnitOfWorkFactory(gormDB),
	}

	identity, err := c.buildKeyring()
	if err != nil {
		return nil, err
	}
	c.identity = identity

	switch cfg.LedgerBackend {
	case LedgerBackendMemory:
		c.ledger = memory.NewLedger()
		log.Warn("using the in-process ledger, commits are not shared with other nodes")
	default:
		c.ledger = ledgerrepo.NewGormLedger(ledgerDB)
	}

	c.acceptor, err = peer.NewAcceptor(identity, c.uowFactory, logger.Component(log, "acceptor"),
		peer.WithLedgerHistory(c.ledger))
	if err != nil {
		return nil, err
	}

	// Without peers every participant is hosted here, and the in-process
	// network hands finalized transactions straight to the acceptor.
	network := memory.NewNetwork()
	network.Register(c.acceptor, identity.LocalPrincipals()...)

	var distributor ports.Distributor = network
	c.messenger = network
	if len(cfg.Peers) > 0 {
		client, clientErr := peerhttp.NewClient(cfg.Peers, logger.Component(log, "peer_client"))
		if clientErr != nil {
			return nil, clientErr
		}
		c.messenger = client
	}
	if cfg.KafkaEnabled() {
		c.writer = kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaRecordsTopic)
		if distributor, err = kafka.NewDistributor(c.writer); err != nil {
			return nil, err
		}
	}

	coordinator, err := quorum.NewCoordinator(identity, c.messenger, cfg.QuorumTimeout, logger.Component(log, "quorum"))
	if err != nil {
		return nil, err
	}
	finalizer, err := commit.NewFinalizationService(c.ledger, c.uowFactory, distributor,
		cfg.CommitTimeout, logger.Component(log, "finalizer"))
	if err != nil {
		return nil, err
	}
	if c.executor, err = lifecycle.NewOrchestrator(c.uowFactory, c.ledger, coordinator, finalizer,
		logger.Component(log, "orchestrator")); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CompositionRoot) buildKeyring() (*keyring.Keyring, error) {
	ring := keyring.New()
	for _, p := range c.cfg.LocalPrincipals {
		seed, ok := c.cfg.KeySeeds[p.Name()]
		if !ok {
			if err := ring.Generate(p); err != nil {
				return nil, err
			}
			c.logger.Warn("no key seed configured, generated a key for this run",
				zap.Stringer("principal", p),
				zap.String("variable", "KEY_SEED_"+EnvName(p)),
			)
			continue
		}
		if err := ring.AddLocal(p, seed); err != nil {
			return nil, fmt.Errorf("key of %s: %w", p, err)
		}
	}
	for p := range c.cfg.Peers {
		if err := ring.AddPeer(p, c.cfg.PeerKeys[p.Name()]); err != nil {
			return nil, fmt.Errorf("key of peer %s: %w", p, err)
		}
	}
	return ring, nil
}

func (c *CompositionRoot) Identity() *keyring.Keyring {
	return c.identity
}

func (c *CompositionRoot) CreateCreateOrderCommandHandler() (commands.CreateOrderCommandHandler, error) {
	return commands.NewCreateOrderCommandHandler(c.executor)
}

func (c *CompositionRoot) CreateAdvanceOrderCommandHandler() (commands.AdvanceOrderCommandHandler, error) {
	return commands.NewAdvanceOrderCommandHandler(c.executor)
}

func (c *CompositionRoot) CreateGetOrderQueryHandler() queries.GetOrderQueryHandler {
	return queries.NewGetOrderQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateGetOrderHistoryQueryHandler() queries.GetOrderHistoryQueryHandler {
	return queries.NewGetOrderHistoryQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateListOrdersQueryHandler() queries.ListOrdersQueryHandler {
	return queries.NewListOrdersQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateListParticipantOrdersQueryHandler() queries.ListParticipantOrdersQueryHandler {
	return queries.NewListParticipantOrdersQueryHandler(c.gormDB)
}

// CreateAuthenticator verifies the bearer tokens of API callers.
func (c *CompositionRoot) CreateAuthenticator() (*httpin.Authenticator, error) {
	return httpin.NewAuthenticator(c.cfg.JWTSecret, c.identity)
}

func (c *CompositionRoot) CreateHTTPServer() (*httpin.Server, error) {
	createOrder, err := c.CreateCreateOrderCommandHandler()
	if err != nil {
		return nil, err
	}
	advanceOrder, err := c.CreateAdvanceOrderCommandHandler()
	if err != nil {
		return nil, err
	}
	handlers := httpin.Handlers{
		CreateOrder:           createOrder,
		AdvanceOrder:          advanceOrder,
		GetOrder:              c.CreateGetOrderQueryHandler(),
		GetOrderHistory:       c.CreateGetOrderHistoryQueryHandler(),
		ListOrders:            c.CreateListOrdersQueryHandler(),
		ListParticipantOrders: c.CreateListParticipantOrdersQueryHandler(),
	}
	return httpin.NewServer(handlers, c.acceptor, c.identity, c.cfg.Peers, logger.Component(c.logger, "http"))
}

// CreateJobManager schedules the head audit. It repairs stale heads by
// replaying the ledger through the acceptor.
func (c *CompositionRoot) CreateJobManager() (*jobs.JobManager, error) {
	audit, err := jobs.NewHeadAuditJob(c.uowFactory, c.ledger, c.cfg.HeadAuditSchedule,
		c.logger, jobs.WithRepair(c.ledger, c.acceptor))
	if err != nil {
		return nil, err
	}
	return jobs.NewJobManager(audit, logger.Component(c.logger, "jobs")), nil
}

// CreateKafkaConsumer returns nil when kafka is not configured.
func (c *CompositionRoot) CreateKafkaConsumer() (*kafka.Consumer, error) {
	if !c.cfg.KafkaEnabled() {
		return nil, nil //nolint:nilnil // no consumer without brokers
	}
	reader := kafka.NewReader(c.cfg.KafkaBrokers, c.cfg.KafkaRecordsTopic, c.cfg.KafkaConsumerGroup)
	return kafka.NewConsumer(reader, c.acceptor, c.identity, logger.Component(c.logger, "kafka_consumer"))
}

// Close releases the kafka writer.
func (c *CompositionRoot) Close() error {
	if c.writer == nil {
		return nil
	}
	return c.writer.Close()
}
