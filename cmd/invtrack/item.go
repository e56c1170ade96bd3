package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vbonduro/invtrack/internal/domain"
	"github.com/vbonduro/invtrack/internal/store"
)

func newItemCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage stock items",
	}
	cmd.AddCommand(newItemAddCmd(opts))
	cmd.AddCommand(newItemListCmd(opts))
	cmd.AddCommand(newItemShowCmd(opts))
	cmd.AddCommand(newItemUpdateCmd(opts))
	cmd.AddCommand(newItemAdjustCmd(opts))
	cmd.AddCommand(newItemDeleteCmd(opts))
	cmd.AddCommand(newItemDistinctCmd(opts, "categories", "List the categories in use", (*store.ItemStore).Categories))
	cmd.AddCommand(newItemDistinctCmd(opts, "locations", "List the locations in use", (*store.ItemStore).Locations))
	return cmd
}

type itemFlags struct {
	name        string
	description string
	sku         string
	qrCode      string
	quantity    int
	price       string
	category    string
	location    string
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Item name")
	cmd.Flags().StringVar(&f.description, "description", "", "Item description")
	cmd.Flags().StringVar(&f.sku, "sku", "", "Stock keeping unit, unique")
	cmd.Flags().StringVar(&f.qrCode, "qr", "", "QR code text, unique")
	cmd.Flags().IntVar(&f.quantity, "qty", 0, "Quantity on hand")
	cmd.Flags().StringVar(&f.price, "price", "0", "Unit price")
	cmd.Flags().StringVar(&f.category, "category", "", "Category")
	cmd.Flags().StringVar(&f.location, "location", "", "Storage location")
}

// apply copies every flag the user set onto item.
func (f *itemFlags) apply(cmd *cobra.Command, item *domain.Item) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		item.Name = f.name
	}
	if changed("description") {
		item.Description = f.description
	}
	if changed("sku") {
		item.SKU = f.sku
	}
	if changed("qr") {
		item.QRCode = f.qrCode
	}
	if changed("qty") {
		item.Quantity = f.quantity
	}
	if changed("price") {
		price, err := decimal.NewFromString(f.price)
		if err != nil {
			return fmt.Errorf("invalid price: %s", f.price)
		}
		item.Price = price
	}
	if changed("category") {
		item.Category = f.category
	}
	if changed("location") {
		item.Location = f.location
	}
	return nil
}

func newItemAddCmd(opts *rootOptions) *cobra.Command {
	flags := &itemFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new item",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			item := &domain.Item{Price: decimal.Zero}
			if err := flags.apply(cmd, item); err != nil {
				return err
			}
			created, err := a.svc.AddItem(cmd.Context(), a.cfg.Actor, item)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added item %d (%s)\n", created.ID, created.SKU)
			return nil
		}),
	}
	flags.register(cmd)
	return cmd
}

func newItemListCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active items",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			items, err := a.items.GetAll(cmd.Context())
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return outputItemsJSON(cmd, items)
			case "table":
				outputItemsTable(cmd, items)
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
			}
		}),
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	return cmd
}

func newItemShowCmd(opts *rootOptions) *cobra.Command {
	var bySKU, byQR bool
	cmd := &cobra.Command{
		Use:   "show <id|sku|qr>",
		Short: "Show one active item",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			var (
				item *domain.Item
				err  error
			)
			switch {
			case bySKU:
				item, err = a.svc.GetItemBySKU(ctx, args[0])
			case byQR:
				item, err = a.svc.GetItemByQRCode(ctx, args[0])
			default:
				id, perr := parseID(args[0])
				if perr != nil {
					return perr
				}
				item, err = a.svc.GetItem(ctx, id)
			}
			if err != nil {
				return err
			}
			return outputItemsJSON(cmd, []*domain.Item{item})
		}),
	}
	cmd.Flags().BoolVar(&bySKU, "sku", false, "Look the item up by SKU")
	cmd.Flags().BoolVar(&byQR, "qr", false, "Look the item up by QR code")
	cmd.MarkFlagsMutuallyExclusive("sku", "qr")
	return cmd
}

func newItemUpdateCmd(opts *rootOptions) *cobra.Command {
	flags := &itemFlags{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an item",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			item, err := a.svc.GetItem(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, item); err != nil {
				return err
			}
			if _, err := a.svc.UpdateItem(cmd.Context(), a.cfg.Actor, item); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated item %d\n", id)
			return nil
		}),
	}
	flags.register(cmd)
	return cmd
}

func newItemAdjustCmd(opts *rootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "adjust <id> <delta>",
		Short: "Add to or remove from an item's quantity",
		Args:  cobra.ExactArgs(2),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid delta: %s", args[1])
			}
			item, err := a.svc.AdjustQuantity(cmd.Context(), a.cfg.Actor, id, delta, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Item %d quantity is now %d\n", id, item.Quantity)
			return nil
		}),
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the audit trail")
	return cmd
}

func newItemDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Deactivate an item; its SKU and QR code stay reserved",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.DeleteItem(cmd.Context(), a.cfg.Actor, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted item %d\n", id)
			return nil
		}),
	}
}

type itemOutput struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	SKU         string  `json:"sku"`
	QRCode      string  `json:"qr_code"`
	Quantity    int     `json:"quantity"`
	Price       string  `json:"price"`
	Value       string  `json:"value"`
	Category    string  `json:"category,omitempty"`
	Location    string  `json:"location,omitempty"`
	Created     string  `json:"created"`
	LastUpdated *string `json:"last_updated,omitempty"`
}

// newItemDistinctCmd prints one value per line so the output can be piped.
func newItemDistinctCmd(opts *rootOptions, use, short string,
	list func(*store.ItemStore, context.Context) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			values, err := list(a.items, cmd.Context())
			if err != nil {
				return err
			}
			for _, v := range values {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		}),
	}
}

func outputItemsJSON(cmd *cobra.Command, items []*domain.Item) error {
	output := make([]itemOutput, 0, len(items))
	for _, item := range items {
		out := itemOutput{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			SKU:         item.SKU,
			QRCode:      item.QRCode,
			Quantity:    item.Quantity,
			Price:       item.Price.StringFixed(2),
			Value:       item.Value().StringFixed(2),
			Category:    item.Category,
			Location:    item.Location,
			Created:     formatTimestamp(item.CreatedDate),
		}
		if item.LastUpdated != nil {
			s := formatTimestamp(*item.LastUpdated)
			out.LastUpdated = &s
		}
		output = append(output, out)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func outputItemsTable(cmd *cobra.Command, items []*domain.Item) {
	t := newTable(cmd)
	t.AppendHeader(table.Row{"ID", "Name", "SKU", "Qty", "Price", "Value", "Category", "Location"})
	for _, item := range items {
		t.AppendRow(table.Row{
			item.ID,
			item.Name,
			item.SKU,
			item.Quantity,
			item.Price.StringFixed(2),
			item.Value().StringFixed(2),
			item.Category,
			item.Location,
		})
	}
	t.Render()
}
