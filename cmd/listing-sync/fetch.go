package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/listing-sync/pkg/easybroker"
	"github.com/spf13/cobra"
)

type fetchOptions struct {
	pageSize int
	view     string
	filters  []string
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch {properties|contacts|contact-requests}",
		Short: "Aggregate one listing and print it as JSON",
		Example: `  listing-sync fetch properties --filter operation_type=sale --filter status=published
  listing-sync fetch contacts --view content --page-size 50`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"properties", "contacts", "contact-requests"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.view != "items" && opts.view != "content" {
				return fmt.Errorf("--view must be items or content (got %q)", opts.view)
			}
			list, err := listFor(args[0], opts)
			if err != nil {
				return err
			}

			cfg, err := root.load()
			if err != nil {
				return err
			}
			cfg.Cache.Enabled = false
			cfg.Sync.Enabled = false

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			listing, err := list(cmd.Context(), a.service, easybroker.ListOptions{PageSize: opts.pageSize, Refresh: true})
			if listing == nil {
				return err
			}
			if listing.Truncated {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: listing truncated (%s) after %d pages\n", listing.Reason, listing.Pages)
			}

			var view any = listing.ItemsView()
			if opts.view == "content" {
				view = listing.ContentView()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(view); encErr != nil {
				return encErr
			}
			return err
		},
	}

	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "Upstream page size (default from config)")
	cmd.Flags().StringVar(&opts.view, "view", "items", "Output shape: items or content")
	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "Property filter as key=value (repeatable)")
	return cmd
}

type listCall func(ctx context.Context, svc *easybroker.Service, opts easybroker.ListOptions) (*easybroker.Listing, error)

func listFor(resource string, opts *fetchOptions) (listCall, error) {
	switch resource {
	case "properties":
		q := url.Values{}
		for _, f := range opts.filters {
			key, value, ok := strings.Cut(f, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("invalid --filter %q, want key=value", f)
			}
			q.Add(key, value)
		}
		filter := easybroker.ParsePropertyFilter(q)
		return func(ctx context.Context, svc *easybroker.Service, o easybroker.ListOptions) (*easybroker.Listing, error) {
			return svc.ListProperties(ctx, filter, o)
		}, nil
	case "contacts":
		return func(ctx context.Context, svc *easybroker.Service, o easybroker.ListOptions) (*easybroker.Listing, error) {
			return svc.ListContacts(ctx, o)
		}, nil
	case "contact-requests":
		return func(ctx context.Context, svc *easybroker.Service, o easybroker.ListOptions) (*easybroker.Listing, error) {
			return svc.ListContactRequests(ctx, o)
		}, nil
	default:
		return nil, fmt.Errorf("unknown resource %q", resource)
	}
}
