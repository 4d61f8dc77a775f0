package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"filippo.io/age"
	"github.com/spf13/cobra"

	"github.com/and161185/payroll-vault/internal/crypto/sealer"
	"github.com/and161185/payroll-vault/internal/model"
	"github.com/and161185/payroll-vault/internal/proof"
)

func newTokenCmd() *cobra.Command {
	var (
		key  string
		ttl  time.Duration
		save bool
	)
	cmd := &cobra.Command{
		Use:   "token IDENTITY",
		Short: "Issue a bearer token for an identity (needs the server's signing key)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return errors.New("missing signing key (--key or PAYCTL_JWT_KEY)")
			}
			sub := string(model.NewIdentity(args[0]))
			if sub == "" {
				return errors.New("empty identity")
			}
			tok, exp, err := issueToken([]byte(key), sub, ttl)
			if err != nil {
				return err
			}
			if save {
				if err := saveToken(tok, sub, exp); err != nil {
					return fmt.Errorf("save token: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", os.Getenv("PAYCTL_JWT_KEY"), "HS256 signing key")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "store the token for later commands")
	return cmd
}

type attesterKeys struct {
	PublicKey string `json:"publicKey"`
	Seed      string `json:"seed"`
}

type ageKeys struct {
	Identity  string `json:"identity"`
	Recipient string `json:"recipient"`
}

const passphraseEnv = "PAYCTL_PASSPHRASE"

func newKeygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:       "keygen attester|sealing|age",
		Short:     "Generate attester, sealing or report (age) keys",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"attester", "sealing", "age"},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "attester":
				pub, seed, err := proof.GenerateKey()
				if err != nil {
					return err
				}
				return printJSON(w, attesterKeys{PublicKey: pub, Seed: seed})
			case "sealing":
				k, err := sealer.NewMasterKey()
				if err != nil {
					return err
				}
				if out == "" {
					fmt.Fprintln(w, hex.EncodeToString(k))
					return nil
				}
				pass := os.Getenv(passphraseEnv)
				if pass == "" {
					return fmt.Errorf("wrapping the key needs a passphrase in %s", passphraseEnv)
				}
				file, err := sealer.WrapKey(k, []byte(pass))
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, file, 0o600); err != nil {
					return err
				}
				fmt.Fprintf(w, "sealing key written to %s\n", out)
				return nil
			default:
				id, err := age.GenerateX25519Identity()
				if err != nil {
					return err
				}
				return printJSON(w, ageKeys{Identity: id.String(), Recipient: id.Recipient().String()})
			}
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "sealing: write a passphrase-wrapped key file instead of hex")
	return cmd
}
