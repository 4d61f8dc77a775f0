package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/and161185/payroll-vault/internal/api"
	"github.com/and161185/payroll-vault/internal/audit"
	"github.com/and161185/payroll-vault/internal/export"
	"github.com/and161185/payroll-vault/internal/model"
)

func newAuditCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Export, verify and open audit trails",
	}
	cmd.AddCommand(newAuditExportCmd(o), newAuditVerifyCmd(o), newAuditReportCmd(o), newAuditOpenCmd())
	return cmd
}

func newAuditExportCmd(o *options) *cobra.Command {
	var term, out string
	cmd := &cobra.Command{
		Use:   "export PAYROLL_ID",
		Short: "Export audit records (employer or verifier)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				res, err := cl.ExportAudit(ctx, &api.ExportAuditRequest{PayrollID: id, Term: term})
				if err != nil {
					return rpcErr("audit export", err)
				}
				b, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				return writeOut(cmd.OutOrStdout(), out, append(b, '\n'))
			})
		},
	}
	cmd.Flags().StringVar(&term, "term", "", "filter by employee or hash")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

// verdict summarizes a verification run.
type verdict struct {
	PayrollID  uint64   `json:"payrollId,omitempty"`
	Root       string   `json:"merkleRoot,omitempty"`
	RootOK     *bool    `json:"rootOk,omitempty"`
	Verified   int      `json:"verified"`
	Mismatched int      `json:"mismatched"`
	Failed     []uint64 `json:"failedPaymentIds,omitempty"`
}

func summarize(recs []model.AuditRecord) verdict {
	var v verdict
	for _, r := range recs {
		if r.Status == model.AuditVerified {
			v.Verified++
			continue
		}
		v.Mismatched++
		v.Failed = append(v.Failed, r.PaymentID)
	}
	return v
}

// checkReport verifies a report offline: every commitment and the Merkle root.
func checkReport(rep audit.Report) (verdict, error) {
	recs, rootOK, err := rep.Check()
	if err != nil {
		return verdict{}, err
	}
	v := summarize(recs)
	v.PayrollID, v.Root, v.RootOK = rep.PayrollID, rep.Root, &rootOK
	return v, nil
}

// isReport tells a report apart from an exported record list.
func isReport(b []byte) bool {
	var probe struct {
		Root *string `json:"merkleRoot"`
	}
	return json.Unmarshal(b, &probe) == nil && probe.Root != nil
}

func newAuditVerifyCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify FILE|-",
		Short: "Recompute commitments of an export (via server) or a report (offline)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readAll(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if isReport(b) {
				rep, err := audit.ParseReport(b)
				if err != nil {
					return err
				}
				v, err := checkReport(rep)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), v)
			}
			var recs api.AuditRecords
			if err := json.Unmarshal(b, &recs); err != nil {
				return fmt.Errorf("parse records: %w", err)
			}
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				res, err := cl.VerifyAudit(ctx, &api.VerifyAuditRequest{Records: recs.Records})
				if err != nil {
					return rpcErr("audit verify", err)
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newAuditReportCmd(o *options) *cobra.Command {
	var (
		publish bool
		out     string
	)
	cmd := &cobra.Command{
		Use:   "report PAYROLL_ID",
		Short: "Build an audit report; --publish stores it in the server's report sink",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return o.call(cmd, func(ctx context.Context, cl *api.Client) error {
				res, err := cl.ExportAuditReport(ctx, &api.ExportAuditReportRequest{PayrollID: id, Publish: publish})
				if err != nil {
					return rpcErr("audit report", err)
				}
				if publish {
					fmt.Fprintln(cmd.OutOrStdout(), res.Location)
					return nil
				}
				if res.Report == nil {
					return errors.New("server returned no report")
				}
				b, err := res.Report.Marshal()
				if err != nil {
					return err
				}
				return writeOut(cmd.OutOrStdout(), out, append(b, '\n'))
			})
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "write to the server's report sink and print its location")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

// openReport decrypts an age-sealed report when identity is set.
func openReport(body []byte, identity string) (audit.Report, error) {
	if identity != "" {
		id, err := export.ParseIdentity(identity)
		if err != nil {
			return audit.Report{}, err
		}
		if body, err = export.Open(body, id); err != nil {
			return audit.Report{}, err
		}
	}
	return audit.ParseReport(body)
}

func newAuditOpenCmd() *cobra.Command {
	var identity, identityFile, out string
	cmd := &cobra.Command{
		Use:   "open FILE|-",
		Short: "Decrypt a published report and check it offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if identityFile != "" {
				b, err := os.ReadFile(identityFile)
				if err != nil {
					return err
				}
				identity = firstIdentity(string(b))
			}
			body, err := readAll(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			rep, err := openReport(body, identity)
			if err != nil {
				return err
			}
			if out != "" {
				b, err := rep.Marshal()
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, b, 0o600); err != nil {
					return err
				}
			}
			v, err := checkReport(rep)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().StringVar(&identity, "identity", os.Getenv("PAYCTL_AGE_IDENTITY"), "age identity (AGE-SECRET-KEY-...)")
	cmd.Flags().StringVar(&identityFile, "identity-file", "", "file holding the age identity")
	cmd.Flags().StringVarP(&out, "out", "o", "", "also write the decrypted report here")
	return cmd
}

// firstIdentity returns the first non-comment line of an age key file.
func firstIdentity(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return ""
}

func newWatchCmd(o *options) *cobra.Command {
	var (
		payrollID uint64
		kinds     []string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream ledger events as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, closeFn, err := o.dial()
			if err != nil {
				return err
			}
			defer closeFn()
			stream, err := cl.Subscribe(cmd.Context(), &api.SubscribeRequest{PayrollID: payrollID, Kinds: kinds})
			if err != nil {
				return rpcErr("watch", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for {
				ev, err := stream.Recv()
				if err != nil {
					if errors.Is(err, io.EOF) || cmd.Context().Err() != nil {
						return nil
					}
					return rpcErr("watch", err)
				}
				if err := enc.Encode(ev); err != nil {
					return err
				}
			}
		},
	}
	cmd.Flags().Uint64Var(&payrollID, "payroll", 0, "only events of this payroll")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "only these event kinds (repeatable)")
	return cmd
}
