package cmd

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
	"unicode"

	"orderchain/internal/adapters/out/keyring"
	"orderchain/internal/core/application/commit"
	"orderchain/internal/core/application/quorum"
	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/jobs"
	"orderchain/internal/pkg/errs"
)

const (
	LedgerBackendPostgres = "postgres"
	LedgerBackendMemory   = "memory"

	defaultHTTPPort     = "8080"
	defaultLogLevel     = "info"
	defaultEnv          = "production"
	defaultRecordsTopic = "orderchain.records"

	// listSeparator splits LOCAL_PRINCIPALS, PEERS and KAFKA_BROKERS.
	// Principal names contain commas.
	listSeparator = ";"
	// peerSeparator splits one PEERS entry into name and base URL.
	peerSeparator = "=>"
)

type Config struct {
	HTTPPort   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	LogLevel string
	Env      string

	JWTSecret string

	LocalPrincipals []kernel.Principal

	// KeySeeds holds the ed25519 seed of each local principal by name. A
	// principal without a seed gets a fresh key at startup.
	KeySeeds map[string][]byte
	Peers    map[kernel.Principal]string
	PeerKeys map[string]ed25519.PublicKey

	LedgerBackend string

	// LedgerDSN points at the database shared by all nodes for the ledger
	// tables. Empty means the node's own database.
	LedgerDSN     string
	QuorumTimeout time.Duration
	CommitTimeout time.Duration

	KafkaBrokers       []string
	KafkaRecordsTopic  string
	KafkaConsumerGroup string

	HeadAuditSchedule string
}

// DSN returns the postgres:// URL used by gorm and the migrations. User
// and password are escaped.
func (c Config) DSN() string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSslMode}}.Encode(),
	}
	return dsn.String()
}

// LedgerDatabaseDSN returns the DSN of the ledger tables.
func (c Config) LedgerDatabaseDSN() string {
	if c.LedgerDSN == "" {
		return c.DSN()
	}
	return c.LedgerDSN
}

// KafkaEnabled reports whether finalized transactions travel through kafka.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// LoadConfig reads the configuration through getenv, usually os.Getenv
// after the optional .env file was loaded.
func LoadConfig(getenv func(string) string) (Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		HTTPPort:          env("HTTP_PORT", defaultHTTPPort),
		DBHost:            env("DB_HOST", "localhost"),
		DBPort:            env("DB_PORT", "5432"),
		DBUser:            env("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD"),
		DBName:            env("DB_NAME", "orderchain"),
		DBSslMode:         env("DB_SSLMODE", "disable"),
		LogLevel:          env("LOG_LEVEL", defaultLogLevel),
		Env:               env("ENV", defaultEnv),
		JWTSecret:         getenv("JWT_SECRET"),
		LedgerBackend:     strings.ToLower(env("LEDGER_BACKEND", LedgerBackendPostgres)),
		LedgerDSN:         strings.TrimSpace(getenv("LEDGER_DATABASE_URL")),
		KafkaBrokers:      splitList(getenv("KAFKA_BROKERS")),
		KafkaRecordsTopic: env("KAFKA_RECORDS_TOPIC", defaultRecordsTopic),
		HeadAuditSchedule: env("HEAD_AUDIT_SCHEDULE", jobs.DefaultHeadAuditSchedule),
		KeySeeds:          make(map[string][]byte),
		Peers:             make(map[kernel.Principal]string),
		PeerKeys:          make(map[string]ed25519.PublicKey),
	}

	var errList []error
	var err error
	if cfg.QuorumTimeout, err = parseDuration(getenv("QUORUM_TIMEOUT"), quorum.DefaultTimeout); err != nil {
		errList = append(errList, errs.NewValueIsInvalidErrorWithCause("QUORUM_TIMEOUT", err))
	}
	if cfg.CommitTimeout, err = parseDuration(getenv("COMMIT_TIMEOUT"), commit.DefaultTimeout); err != nil {
		errList = append(errList, errs.NewValueIsInvalidErrorWithCause("COMMIT_TIMEOUT", err))
	}
	if cfg.JWTSecret == "" {
		errList = append(errList, errs.NewValueIsRequiredError("JWT_SECRET"))
	}
	if cfg.LedgerBackend != LedgerBackendPostgres && cfg.LedgerBackend != LedgerBackendMemory {
		errList = append(errList, errs.NewValueIsInvalidError("LEDGER_BACKEND"))
	}

	errList = append(errList, cfg.loadLocalPrincipals(getenv)...)
	errList = append(errList, cfg.loadPeers(getenv)...)

	if len(cfg.Peers) > 0 && !cfg.KafkaEnabled() {
		errList = append(errList, errs.NewValueIsRequiredErrorWithCause("KAFKA_BROKERS",
			errors.New("peers receive finalized transactions through kafka")))
	}
	if len(cfg.Peers) > 0 && cfg.LedgerBackend == LedgerBackendMemory {
		errList = append(errList, errs.NewValueIsInvalidErrorWithCause("LEDGER_BACKEND",
			errors.New("the memory ledger cannot be shared with peers")))
	}
	if len(cfg.LocalPrincipals) > 0 {
		cfg.KafkaConsumerGroup = env("KAFKA_CONSUMER_GROUP", "orderchain-"+strings.ToLower(EnvName(cfg.LocalPrincipals[0])))
	}

	if err = errors.Join(errList...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadLocalPrincipals(getenv func(string) string) []error {
	var errList []error
	for _, name := range splitList(getenv("LOCAL_PRINCIPALS")) {
		p, err := kernel.NewPrincipal(name)
		if err != nil {
			errList = append(errList, errs.NewValueIsInvalidErrorWithCause("LOCAL_PRINCIPALS", err))
			continue
		}
		c.LocalPrincipals = append(c.LocalPrincipals, p)

		key := "KEY_SEED_" + EnvName(p)
		raw := strings.TrimSpace(getenv(key))
		if raw == "" {
			continue
		}
		seed, err := keyring.DecodeSeed(raw)
		if err != nil {
			errList = append(errList, errs.NewValueIsInvalidErrorWithCause(key, err))
			continue
		}
		c.KeySeeds[p.Name()] = seed
	}
	if len(c.LocalPrincipals) == 0 {
		errList = append(errList, errs.NewValueIsRequiredError("LOCAL_PRINCIPALS"))
	}
	return errList
}

func (c *Config) loadPeers(getenv func(string) string) []error {
	var errList []error
	for _, entry := range splitList(getenv("PEERS")) {
		name, url, found := strings.Cut(entry, peerSeparator)
		if !found || strings.TrimSpace(url) == "" {
			errList = append(errList, errs.NewValueIsInvalidErrorWithCause("PEERS",
				fmt.Errorf("entry %q is not name%surl", entry, peerSeparator)))
			continue
		}
		p, err := kernel.NewPrincipal(name)
		if err != nil {
			errList = append(errList, errs.NewValueIsInvalidErrorWithCause("PEERS", err))
			continue
		}
		c.Peers[p] = strings.TrimSpace(url)

		key := "PEER_KEY_" + EnvName(p)
		pub, err := keyring.DecodePublicKey(strings.TrimSpace(getenv(key)))
		if err != nil {
			errList = append(errList, errs.NewValueIsInvalidErrorWithCause(key, err))
			continue
		}
		c.PeerKeys[p.Name()] = pub
	}
	return errList
}

// EnvName turns a principal name into an environment variable suffix:
// "O=Buyer,L=London" becomes "O_BUYER_L_LONDON".
func EnvName(p kernel.Principal) string {
	var b strings.Builder
	underscore := false
	for _, r := range p.Name() {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, listSeparator) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %s must be positive", d)
	}
	return d, nil
}
