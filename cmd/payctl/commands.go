package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/payroll-vault/internal/api"
	"github.com/and161185/payroll-vault/internal/crypto/sealer"
	"github.com/and161185/payroll-vault/internal/model"
	"github.com/and161185/payroll-vault/internal/proof"
)

// sealing returns the master key, or nil when none is configured.
func (o *options) sealing() ([]byte, error) {
	switch {
	case o.sealingKey != "":
		return sealer.ParseKey(o.sealingKey)
	case o.sealingKeyFile != "":
		b, err := os.ReadFile(o.sealingKeyFile)
		if err != nil {
			return nil, err
		}
		pass := os.Getenv(passphraseEnv)
		if pass == "" {
			return nil, fmt.Errorf("sealing key file needs a passphrase in %s", passphraseEnv)
		}
		return sealer.UnwrapKey(b, []byte(pass))
	}
	return nil, nil
}

func (o *options) signer() (*proof.Signer, error) {
	if o.attesterKey == "" {
		return nil, errors.New("missing attester key (--attester-key or PAYCTL_ATTESTER_KEY)")
	}
	return proof.ParseSigner(o.attesterKey)
}

// sealPayment seals amount for employee and proves the ciphertext.
func sealPayment(master []byte, signer *proof.Signer, payrollID uint64, employee model.Identity, amount string) (ct, pf []byte, err error) {
	blob, err := sealer.SealAmount(master, payrollID, employee, amount)
	if err != nil {
		return nil, nil, err
	}
	return blob, signer.Prove(blob, proof.PaymentContext(payrollID, employee)), nil
}

func newCreateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME DESCRIPTION",
		Short: "Create a payroll run owned by the token subject",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				res, err := cl.CreatePayroll(ctx, &api.CreatePayrollRequest{Name: args[0], Description: args[1]})
				if err != nil {
					return rpcErr("create", err)
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newInfoCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info PAYROLL_ID",
		Short: "Show a payroll",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				p, err := cl.GetPayrollInfo(ctx, &api.PayrollRef{PayrollID: id})
				if err != nil {
					return rpcErr("info", err)
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
}

func newListCmd(o *options) *cobra.Command {
	var employer string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List payrolls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				res, err := cl.ListPayrolls(ctx, &api.ListPayrollsRequest{Employer: employer})
				if err != nil {
					return rpcErr("list", err)
				}
				return printJSON(cmd.OutOrStdout(), res.Payrolls)
			})
		},
	}
	cmd.Flags().StringVar(&employer, "employer", "", "only payrolls of this employer")
	return cmd
}

func newVerifyCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify PAYROLL_ID",
		Short: "Mark a payroll verified (verifier only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				if _, err := cl.SetVerified(ctx, &api.PayrollRef{PayrollID: id}); err != nil {
					return rpcErr("verify", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "payroll %d verified\n", id)
				return nil
			})
		},
	}
}

func newDeactivateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate PAYROLL_ID",
		Short: "Stop a payroll from accepting payments (employer only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				if _, err := cl.Deactivate(ctx, &api.PayrollRef{PayrollID: id}); err != nil {
					return rpcErr("deactivate", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "payroll %d deactivated\n", id)
				return nil
			})
		},
	}
}

func newPayCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pay PAYROLL_ID EMPLOYEE AMOUNT",
		Short: "Seal an amount, prove it and record the payment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			employee := model.NewIdentity(args[1])
			master, err := o.sealing()
			if err != nil {
				return err
			}
			if master == nil {
				return errors.New("missing sealing key (--sealing-key or PAYCTL_SEALING_KEY)")
			}
			signer, err := o.signer()
			if err != nil {
				return err
			}
			ct, pf, err := sealPayment(master, signer, id, employee, args[2])
			if err != nil {
				return err
			}
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				res, err := cl.ProcessPayment(ctx, &api.ProcessPaymentRequest{
					PayrollID: id, Employee: string(employee), EncryptedAmount: ct, InputProof: pf,
				})
				if err != nil {
					return rpcErr("pay", err)
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

type paymentView struct {
	ID             uint64    `json:"id"`
	Employee       string    `json:"employee"`
	Amount         string    `json:"amount,omitempty"`
	CiphertextSize int       `json:"ciphertextSize"`
	CreatedAt      time.Time `json:"createdAt"`
}

// paymentViews opens amounts when master is set; undecryptable ones stay empty.
func paymentViews(master []byte, ps []api.Payment) []paymentView {
	out := make([]paymentView, 0, len(ps))
	for _, p := range ps {
		v := paymentView{ID: p.ID, Employee: p.Employee, CiphertextSize: len(p.EncryptedAmount), CreatedAt: p.CreatedAt}
		if master != nil {
			if amount, err := sealer.OpenAmount(master, p.PayrollID, model.Identity(p.Employee), p.EncryptedAmount); err == nil {
				v.Amount = amount
			}
		}
		out = append(out, v)
	}
	return out
}

func newPaymentsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "payments PAYROLL_ID",
		Short: "List payments; amounts are shown when the sealing key is known",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			master, err := o.sealing()
			if err != nil {
				return err
			}
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				res, err := cl.ListPayments(ctx, &api.PayrollRef{PayrollID: id})
				if err != nil {
					return rpcErr("payments", err)
				}
				return printJSON(cmd.OutOrStdout(), paymentViews(master, res.Payments))
			})
		},
	}
}

func newStoreCmd(o *options) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "store PAYROLL_ID DATA_TYPE FILE|-",
		Short: "Seal and store payroll metadata under a data type",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dataType := args[1]
			data, err := readAll(cmd.InOrStdin(), args[2])
			if err != nil {
				return err
			}
			if !raw {
				master, err := o.sealing()
				if err != nil {
					return err
				}
				if master == nil {
					return errors.New("missing sealing key (use --raw for pre-encrypted input)")
				}
				if data, err = sealer.SealRecord(master, id, dataType, data); err != nil {
					return err
				}
			}
			signer, err := o.signer()
			if err != nil {
				return err
			}
			pf := signer.Prove(data, proof.DataContext(id, dataType))
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				res, err := cl.EncryptAndStoreData(ctx, &api.StoreDataRequest{
					PayrollID: id, DataType: dataType, EncryptedData: data, InputProof: pf,
				})
				if err != nil {
					return rpcErr("store", err)
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "input is already encrypted; store as is")
	return cmd
}

func newGetCmd(o *options) *cobra.Command {
	var out string
	var raw bool
	cmd := &cobra.Command{
		Use:   "get PAYROLL_ID DATA_TYPE",
		Short: "Fetch stored metadata, opening it when the sealing key is known",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			master, err := o.sealing()
			if err != nil {
				return err
			}
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				res, err := cl.GetEncryptedData(ctx, &api.GetDataRequest{PayrollID: id, DataType: args[1]})
				if err != nil {
					return rpcErr("get", err)
				}
				data := res.EncryptedData
				if master != nil && !raw {
					if data, err = sealer.OpenRecord(master, id, args[1], data); err != nil {
						return err
					}
				}
				return writeOut(cmd.OutOrStdout(), out, data)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print ciphertext even when the sealing key is known")
	return cmd
}

func newTypesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "types PAYROLL_ID",
		Short: "List stored data types of a payroll",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				res, err := cl.ListDataTypes(ctx, &api.PayrollRef{PayrollID: id})
				if err != nil {
					return rpcErr("types", err)
				}
				return printJSON(cmd.OutOrStdout(), res.DataTypes)
			})
		},
	}
}
