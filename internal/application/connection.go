package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
	"github.com/ericfisherdev/veeamdump/internal/domain/table"
)

// VOMConfigKey holds the Veeam ONE database settings.
const VOMConfigKey = `HKLM\SOFTWARE\Veeam\Veeam ONE Monitor\db_config`

// VOMConfigEntropy is the DPAPI entropy Veeam ONE uses for its database
// login. It is the UTF-16LE text {F0F8C9DE-AB1E-48b6-8221-665E5B016E70}
// compiled into VeeamRegSettings.dll.
const VOMConfigEntropy = "ewBGADAARgA4AEMAOQBEAEUALQBBAEIAMQBFAC0ANAA4AGIANgAtADgAMgAyADEALQA2ADYANQBFADUAQgAwADEANgBFADcAMAB9AA=="

const mssqlPort = 1433

// DecrypterFactory returns the backend for a strategy.
type DecrypterFactory func(model.Strategy) (driven.SecretDecrypter, error)

// dbParams is what the registry yields before the auth decision.
type dbParams struct {
	instancePath string
	database     string
	integrated   string // "true"/"sspi" selects integrated auth
	user         string
	password     string
}

// Resolver reads a product's SQL Server connection settings from the registry
// and recovers any stored SQL login.
type Resolver struct {
	reg          driven.RegistryReader
	newDecrypter DecrypterFactory
	creds        driven.CredentialStore
	logger       *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(reg driven.RegistryReader, newDecrypter DecrypterFactory, creds driven.CredentialStore, logger *slog.Logger) *Resolver {
	return &Resolver{reg: reg, newDecrypter: newDecrypter, creds: creds, logger: logger}
}

// Resolve returns the connection for rc.Target. A recovered SQL login is
// recorded in the credential store under rc.RunID.
func (r *Resolver) Resolve(ctx context.Context, rc model.RunContext) (model.Connection, error) {
	var (
		p   dbParams
		err error
	)
	switch rc.Target.Product {
	case model.ProductBackupReplication:
		p, err = r.vbrParams(ctx)
	case model.ProductOneMonitor:
		p, err = r.vomParams(ctx)
	default:
		return model.Connection{}, model.Fail(model.KindBadConfig, "unknown product %q", rc.Target.Product)
	}
	if err != nil {
		return model.Connection{}, err
	}

	conn, err := decideAuth(p)
	if err != nil {
		return model.Connection{}, err
	}

	log := r.logger.With("product", rc.Target.Product.DisplayName())
	log.Info("SQL database connection",
		"instance", conn.InstancePath, "database", conn.Database, "auth", string(conn.Auth))

	switch conn.Auth {
	case model.AuthIntegrated:
		log.Warn("the database uses Windows authentication; the session identity must have access to the SQL Server instance")
	case model.AuthSQL:
		log.Info("recovered SQL login", "user", conn.User)
		cred := model.Credential{
			RunID:    rc.RunID,
			Username: conn.User,
			Secret:   conn.Password,
			Service: model.ServiceData{
				Address:  rc.Host,
				Port:     mssqlPort,
				Name:     "mssql",
				Protocol: "tcp",
				Realm:    conn.InstancePath,
			},
			Origin: string(rc.Target.Product),
		}
		if err := r.creds.Store(ctx, cred); err != nil {
			return model.Connection{}, fmt.Errorf("store SQL login: %w", err)
		}
	}
	return conn, nil
}

// decideAuth selects exactly one authentication mode.
func decideAuth(p dbParams) (model.Connection, error) {
	if p.instancePath == "" || p.database == "" {
		return model.Connection{}, model.Fail(model.KindNoTarget, "failed to recover database parameters")
	}
	conn := model.Connection{InstancePath: p.instancePath, Database: p.database}

	if strings.EqualFold(p.integrated, "true") || strings.EqualFold(p.integrated, "sspi") {
		conn.Auth = model.AuthIntegrated
		return conn, nil
	}
	if p.user == "" || p.password == "" {
		return model.Connection{}, model.Fail(model.KindNoTarget, "could not extract SQL login information")
	}
	conn.Auth = model.AuthSQL
	conn.User = p.user
	conn.Password = p.password
	return conn, nil
}

func (r *Resolver) vbrParams(ctx context.Context) (dbParams, error) {
	if err := r.requireKey(ctx, VBRKey); err != nil {
		return dbParams{}, err
	}

	vals, err := r.values(ctx, VBRKey, "SqlServerName", "SqlInstanceName", "SqlDatabaseName", "SqlLogin", "SqlSecuredPassword")
	if err != nil {
		return dbParams{}, err
	}
	host, instance, db, login, passEnc := vals[0], vals[1], vals[2], vals[3], vals[4]
	if host == "" || db == "" {
		return dbParams{}, model.Fail(model.KindNoTarget, "could not read SQL parameters from %s", VBRKey)
	}

	p := dbParams{instancePath: host, database: db}
	if instance != "" {
		p.instancePath = host + `\` + instance
	}

	var pass string
	if login != "" && passEnc != "" {
		pass, err = r.unprotect(ctx, model.Strategy{
			Era:         model.EraHostProtection,
			Disposition: model.DispositionDPAPI,
			TextUnicode: true,
		}, passEnc)
		if err != nil {
			return dbParams{}, err
		}
	}

	if pass == "" {
		p.integrated = "true"
	} else {
		p.user, p.password = login, pass
	}
	return p, nil
}

func (r *Resolver) vomParams(ctx context.Context) (dbParams, error) {
	if err := r.requireKey(ctx, VOMConfigKey); err != nil {
		return dbParams{}, err
	}

	vals, err := r.values(ctx, VOMConfigKey, "host", "db_name", "db_auth_sql")
	if err != nil {
		return dbParams{}, err
	}
	instancePath, db := vals[0], vals[1]
	if instancePath == "" || db == "" {
		return dbParams{}, model.Fail(model.KindNoTarget, "could not read SQL parameters from %s", VOMConfigKey)
	}
	authSQL, _ := strconv.Atoi(strings.TrimSpace(vals[2]))

	p := dbParams{instancePath: instancePath, database: db}
	if authSQL == 0 {
		p.integrated = "true"
		return p, nil
	}

	enc, err := r.values(ctx, VOMConfigKey, "db_login", "db_password")
	if err != nil {
		return dbParams{}, err
	}

	var user, pass string
	if enc[0] != "" && enc[1] != "" {
		s := model.Strategy{
			Era:         model.EraHostProtection,
			Disposition: model.DispositionDPAPI,
			TextUnicode: true,
			EntropyB64:  VOMConfigEntropy,
		}
		if user, err = r.unprotect(ctx, s, enc[0]); err != nil {
			return dbParams{}, err
		}
		if pass, err = r.unprotect(ctx, s, enc[1]); err != nil {
			return dbParams{}, err
		}
	}

	if authSQL != 1 || user == "" || pass == "" {
		return dbParams{}, model.Fail(model.KindNoTarget, "failed to extract SQL native login credential")
	}
	p.user, p.password = user, pass
	return p, nil
}

func (r *Resolver) requireKey(ctx context.Context, key string) error {
	exists, err := r.reg.KeyExists(ctx, key)
	if err != nil {
		return fmt.Errorf("check %s: %w", key, err)
	}
	if !exists {
		return model.Fail(model.KindNoTarget, "could not read %s", key)
	}
	return nil
}

// values reads registry values under key. Missing values are "".
func (r *Resolver) values(ctx context.Context, key string, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		v, err := r.reg.GetValue(ctx, key, name)
		if errors.Is(err, driven.ErrValueNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s\\%s: %w", key, name, err)
		}
		out[i] = strings.TrimSpace(table.StripNUL(v))
	}
	return out, nil
}

// unprotect decrypts a registry secret. Per-item failures yield "".
func (r *Resolver) unprotect(ctx context.Context, s model.Strategy, b64 string) (string, error) {
	dec, err := r.newDecrypter(s)
	if err != nil {
		return "", model.FailWrap(model.KindBadConfig, err, "select decrypt backend")
	}
	res, err := dec.Decrypt(ctx, b64)
	if err != nil {
		return "", fmt.Errorf("decrypt SQL login: %w", err)
	}
	if res.Status == model.DecryptFailed {
		r.logger.Error("SQL login secret failed to decrypt", "error", res.Err)
		return "", nil
	}
	return table.StripNUL(res.Plaintext), nil
}
