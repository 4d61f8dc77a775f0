// Command payctl is a CLI client for the payroll-vault ledger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/and161185/payroll-vault/internal/api"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// options are the global flags shared by every command.
type options struct {
	addr      string
	ca        string
	insecure  bool
	plaintext bool
	token     string
	timeout   time.Duration

	sealingKey     string
	sealingKeyFile string
	attesterKey    string
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "payctl",
		Short:         "Confidential payroll ledger client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&o.addr, "addr", envOr("PAYCTL_ADDR", "localhost:8443"), "server address")
	pf.StringVar(&o.ca, "ca", "", "CA certificate (PEM) for server TLS")
	pf.BoolVar(&o.insecure, "insecure", false, "skip TLS verification (dev only)")
	pf.BoolVar(&o.plaintext, "plaintext", false, "connect without TLS (dev only)")
	pf.StringVar(&o.token, "token", os.Getenv("PAYCTL_TOKEN"), "bearer token (default: saved token)")
	pf.DurationVar(&o.timeout, "timeout", 15*time.Second, "per-call timeout")
	pf.StringVar(&o.sealingKey, "sealing-key", os.Getenv("PAYCTL_SEALING_KEY"), "hex 32-byte key sealing amounts and records")
	pf.StringVar(&o.sealingKeyFile, "sealing-key-file", os.Getenv("PAYCTL_SEALING_KEY_FILE"), "passphrase-wrapped sealing key (passphrase from PAYCTL_PASSPHRASE)")
	pf.StringVar(&o.attesterKey, "attester-key", os.Getenv("PAYCTL_ATTESTER_KEY"), "hex Ed25519 attester seed producing input proofs")

	root.AddCommand(
		newTokenCmd(),
		newKeygenCmd(),
		newCreateCmd(o),
		newInfoCmd(o),
		newListCmd(o),
		newVerifyCmd(o),
		newDeactivateCmd(o),
		newPayCmd(o),
		newPaymentsCmd(o),
		newStoreCmd(o),
		newGetCmd(o),
		newTypesCmd(o),
		newAuditCmd(o),
		newWatchCmd(o),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func (o *options) bearer() string {
	if o.token != "" {
		return o.token
	}
	tok, err := loadToken()
	if err != nil {
		return ""
	}
	return tok
}

// dial connects to the server. The returned func closes the connection.
func (o *options) dial() (*api.Client, func(), error) {
	var (
		creds credentials.TransportCredentials
		err   error
	)
	if o.plaintext {
		creds = insecure.NewCredentials()
	} else if creds, err = loadTLS(o.ca, o.insecure); err != nil {
		return nil, nil, err
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.Codec)),
	}
	if tok := o.bearer(); tok != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: tok, secure: !o.plaintext}))
	}
	cc, err := grpc.NewClient(o.addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", o.addr, err)
	}
	return api.NewClient(cc), func() { _ = cc.Close() }, nil
}

// call dials, runs fn under the per-call timeout and closes the connection.
func (o *options) call(cmd *cobra.Command, fn func(ctx context.Context, cl *api.Client) error) error {
	cl, closeFn, err := o.dial()
	if err != nil {
		return err
	}
	defer closeFn()
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()
	return fn(ctx, cl)
}
