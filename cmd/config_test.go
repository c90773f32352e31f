package cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"net/url"
	"testing"
	"time"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/jobs"
	"orderchain/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func minimalEnv() map[string]string {
	return map[string]string{
		"JWT_SECRET":       "secret",
		"LOCAL_PRINCIPALS": "O=Buyer,L=London",
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	// When
	cfg, err := LoadConfig(envOf(minimalEnv()))

	// Then
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, LedgerBackendPostgres, cfg.LedgerBackend)
	assert.Equal(t, 30*time.Second, cfg.QuorumTimeout)
	assert.Equal(t, 30*time.Second, cfg.CommitTimeout)
	assert.Equal(t, jobs.DefaultHeadAuditSchedule, cfg.HeadAuditSchedule)
	assert.Equal(t, "orderchain.records", cfg.KafkaRecordsTopic)
	assert.Equal(t, "orderchain-o_buyer_l_london", cfg.KafkaConsumerGroup)
	assert.False(t, cfg.KafkaEnabled())
	require.Len(t, cfg.LocalPrincipals, 1)
	assert.Equal(t, "O=Buyer,L=London", cfg.LocalPrincipals[0].Name())
	assert.Empty(t, cfg.KeySeeds)
	assert.Equal(t, "postgres://postgres:@localhost:5432/orderchain?sslmode=disable", cfg.DSN())
	assert.Equal(t, cfg.DSN(), cfg.LedgerDatabaseDSN())
}

func TestLoadConfig_Full(t *testing.T) {
	// Given
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	seed := make([]byte, ed25519.SeedSize)
	env := minimalEnv()
	env["LOCAL_PRINCIPALS"] = "O=Buyer,L=London; O=Shipper,L=Berlin"
	env["KEY_SEED_O_BUYER_L_LONDON"] = hex.EncodeToString(seed)
	env["PEERS"] = "O=Seller,L=Paris=>http://seller:8080/"
	env["PEER_KEY_O_SELLER_L_PARIS"] = hex.EncodeToString(pub)
	env["KAFKA_BROKERS"] = "kafka-1:9092;kafka-2:9092"
	env["QUORUM_TIMEOUT"] = "5s"
	env["COMMIT_TIMEOUT"] = "1m"
	env["LEDGER_DATABASE_URL"] = "postgres://ledger@notary:5432/ledger"

	// When
	cfg, err := LoadConfig(envOf(env))

	// Then
	require.NoError(t, err)
	require.Len(t, cfg.LocalPrincipals, 2)
	assert.Equal(t, "O=Shipper,L=Berlin", cfg.LocalPrincipals[1].Name())
	assert.Equal(t, seed, cfg.KeySeeds["O=Buyer,L=London"])
	assert.NotContains(t, cfg.KeySeeds, "O=Shipper,L=Berlin")
	assert.Equal(t, "http://seller:8080/", cfg.Peers[kernel.MustPrincipal("O=Seller,L=Paris")])
	assert.Equal(t, ed25519.PublicKey(pub), cfg.PeerKeys["O=Seller,L=Paris"])
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.QuorumTimeout)
	assert.Equal(t, time.Minute, cfg.CommitTimeout)
	assert.Equal(t, "postgres://ledger@notary:5432/ledger", cfg.LedgerDatabaseDSN())
}

func TestConfig_DSNEscapesCredentials(t *testing.T) {
	// Given
	env := minimalEnv()
	env["DB_USER"] = "order:chain"
	env["DB_PASSWORD"] = "p@ss/w:rd"
	env["DB_HOST"] = "vault.internal"

	// When
	cfg, err := LoadConfig(envOf(env))
	require.NoError(t, err)
	dsn := cfg.DSN()

	// Then
	parsed, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "order:chain", parsed.User.Username())
	password, ok := parsed.User.Password()
	assert.True(t, ok)
	assert.Equal(t, "p@ss/w:rd", password)
	assert.Equal(t, "vault.internal:5432", parsed.Host)
	assert.Equal(t, "/orderchain", parsed.Path)
	assert.Equal(t, "disable", parsed.Query().Get("sslmode"))
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		change  func(env map[string]string)
		wantErr error
	}{
		{
			name:    "missing jwt secret",
			change:  func(env map[string]string) { delete(env, "JWT_SECRET") },
			wantErr: errs.ErrValueIsRequired,
		},
		{
			name:    "missing local principals",
			change:  func(env map[string]string) { delete(env, "LOCAL_PRINCIPALS") },
			wantErr: errs.ErrValueIsRequired,
		},
		{
			name:    "bad duration",
			change:  func(env map[string]string) { env["QUORUM_TIMEOUT"] = "soon" },
			wantErr: errs.ErrValueIsInvalid,
		},
		{
			name:    "negative duration",
			change:  func(env map[string]string) { env["COMMIT_TIMEOUT"] = "-1s" },
			wantErr: errs.ErrValueIsInvalid,
		},
		{
			name:    "unknown ledger backend",
			change:  func(env map[string]string) { env["LEDGER_BACKEND"] = "blockchain" },
			wantErr: errs.ErrValueIsInvalid,
		},
		{
			name:    "malformed seed",
			change:  func(env map[string]string) { env["KEY_SEED_O_BUYER_L_LONDON"] = "zz" },
			wantErr: errs.ErrValueIsInvalid,
		},
		{
			name:    "peer entry without url",
			change:  func(env map[string]string) { env["PEERS"] = "O=Seller,L=Paris" },
			wantErr: errs.ErrValueIsInvalid,
		},
		{
			name: "peer without kafka",
			change: func(env map[string]string) {
				pub, _, _ := ed25519.GenerateKey(rand.Reader)
				env["PEERS"] = "O=Seller,L=Paris=>http://seller:8080"
				env["PEER_KEY_O_SELLER_L_PARIS"] = hex.EncodeToString(pub)
			},
			wantErr: errs.ErrValueIsRequired,
		},
		{
			name: "peer without key",
			change: func(env map[string]string) {
				env["PEERS"] = "O=Seller,L=Paris=>http://seller:8080"
				env["KAFKA_BROKERS"] = "kafka:9092"
			},
			wantErr: errs.ErrValueIsInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given
			env := minimalEnv()
			tt.change(env)

			// When
			_, err := LoadConfig(envOf(env))

			// Then
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		"O=Buyer,L=London":      "O_BUYER_L_LONDON",
		"buyer":                 "BUYER",
		"O=Seller Ltd, L=Paris": "O_SELLER_LTD_L_PARIS",
		"CN=node-1.":            "CN_NODE_1",
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, EnvName(kernel.MustPrincipal(name)))
		})
	}
}
