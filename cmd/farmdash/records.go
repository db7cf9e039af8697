package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/application"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/export"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/services"
	"github.com/spf13/cobra"
)

type record interface {
	application.Record
	domain.Row
}

//recordStore is what the generic commands need from a resource service
type recordStore[T any] interface {
	List(ctx context.Context) (services.Collection[T], error)
	Filter(ctx context.Context, query url.Values) (services.Collection[T], error)
	Get(ctx context.Context, id int64) (T, error)
	Create(ctx context.Context, record T) (T, error)
	Update(ctx context.Context, id int64, record T) (T, error)
	Delete(ctx context.Context, id int64) error
}

type resourceCommand[T record] struct {
	use     string
	short   string
	entity  string
	current func() *dashboard
	store   func(d *dashboard) recordStore[T]
	//prefill, when set, adds a --geocode flag to create that completes the draft before submit
	prefill func(ctx context.Context, d *dashboard, draft T) (T, error)
}

func (rc resourceCommand[T]) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   rc.use,
		Short: rc.short,
	}

	cmd.AddCommand(rc.listCommand(), rc.getCommand(), rc.createCommand(), rc.updateCommand(), rc.deleteCommand())

	return cmd
}

func (rc resourceCommand[T]) view(d *dashboard, lister application.Lister[T]) *application.ListView[T] {
	store := rc.store(d)
	if lister == nil {
		lister = store
	}
	return application.NewListView[T](rc.entity, lister, store, store, d.log)
}

func (rc resourceCommand[T]) listCommand() *cobra.Command {
	var filters []string
	var xlsx string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List " + rc.use,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := rc.current()

			var lister application.Lister[T]
			if len(filters) > 0 {
				query, err := parseFilters(filters)
				if err != nil {
					return err
				}
				store := rc.store(d)
				lister = application.ListerFunc[T](func(ctx context.Context) (services.Collection[T], error) {
					return store.Filter(ctx, query)
				})
			}

			view := rc.view(d, lister)
			if err := view.Load(cmd.Context()); err != nil {
				return errors.New(view.Message())
			}

			if xlsx != "" {
				if err := export.WriteFile(xlsx, rc.entity+"s", view.Items()); err != nil {
					return err
				}
				fmt.Fprintf(d.out, "Exported %d %s to %s\n", len(view.Items()), rc.use, xlsx)
				return nil
			}

			return renderTable(d.out, view.Items())
		},
	}

	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter on key=value (repeatable)")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "export the list to an Excel workbook at this path")

	return cmd
}

func (rc resourceCommand[T]) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one of the " + rc.use,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := rc.current()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			detail := application.NewDetailView[T](rc.entity, id, rc.store(d))
			if err = detail.Load(cmd.Context()); err != nil {
				return errors.New(detail.Message())
			}

			found, _ := detail.Record()
			return renderRecord(d.out, found)
		},
	}
}

func (rc resourceCommand[T]) createCommand() *cobra.Command {
	var sets []string
	var geocode bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record from --set key=value pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := rc.current()

			form, err := rc.view(d, nil).NewForm()
			if err != nil {
				return err
			}

			if err = editDraft(form, sets); err != nil {
				return err
			}

			if geocode && rc.prefill != nil {
				prefilled, err := rc.prefill(cmd.Context(), d, form.Draft())
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Location lookup failed: %s\n", application.UserMessage(err, ""))
				} else {
					form.Edit(func(draft *T) { *draft = prefilled })
				}
			}

			saved, err := form.Submit(cmd.Context())
			if err != nil {
				return formFailure(err, form.Message(), form.Errors())
			}

			fmt.Fprintf(d.out, "Created %s %d\n", rc.entity, saved.Identifier())
			return renderRecord(d.out, saved)
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value to set on the new record (repeatable)")
	if rc.prefill != nil {
		cmd.Flags().BoolVar(&geocode, "geocode", false, "fill in an empty location from latitude and longitude")
	}

	return cmd
}

func (rc resourceCommand[T]) updateCommand() *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a record with --set key=value pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := rc.current()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if len(sets) == 0 {
				return errors.New("nothing to update, use --set field=value")
			}

			store := rc.store(d)
			detail := application.NewDetailView[T](rc.entity, id, store)
			if err = detail.Load(cmd.Context()); err != nil {
				return errors.New(detail.Message())
			}

			current, _ := detail.Record()
			form := application.NewForm[T](rc.entity, store, nil, current, d.log)
			if err = editDraft(form, sets); err != nil {
				return err
			}

			saved, err := form.Submit(cmd.Context())
			if err != nil {
				return formFailure(err, form.Message(), form.Errors())
			}

			fmt.Fprintf(d.out, "Updated %s %d\n", rc.entity, id)
			return renderRecord(d.out, saved)
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value to change (repeatable)")

	return cmd
}

func (rc resourceCommand[T]) deleteCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := rc.current()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return deleteRecord(cmd.Context(), d, rc.view(d, nil), id, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func deleteRecord[T application.Record](ctx context.Context, d *dashboard, view *application.ListView[T], id int64, yes bool) error {
	var confirm application.Confirmer = application.ConfirmFunc(d.confirm)
	if yes {
		confirm = nil
	}

	deleted, err := view.Delete(ctx, id, confirm)
	if err != nil {
		return errors.New(view.Message())
	}

	if !deleted {
		fmt.Fprintln(d.out, "Cancelled")
		return nil
	}

	fmt.Fprintf(d.out, "Deleted %s %d\n", view.Entity(), id)
	return nil
}

//editDraft applies --set pairs to the draft of form
func editDraft[T application.Record](form *application.Form[T], sets []string) error {
	var assignErr error

	err := form.Edit(func(draft *T) {
		assignErr = assign(draft, sets)
	})

	if err != nil {
		return err
	}
	return assignErr
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a valid id", arg)
	}
	return id, nil
}

func parseFilters(pairs []string) (url.Values, error) {
	query := url.Values{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		query.Add(key, strings.TrimSpace(value))
	}
	return query, nil
}

func newFarmsCommand(current func() *dashboard) *cobra.Command {
	return resourceCommand[domain.Farm]{
		use:     "farms",
		short:   "Manage farms",
		entity:  "Farm",
		current: current,
		store:   func(d *dashboard) recordStore[domain.Farm] { return d.farms },
		prefill: func(ctx context.Context, d *dashboard, draft domain.Farm) (domain.Farm, error) {
			return d.geocode.Prefill(ctx, draft)
		},
	}.command()
}

func newFieldsCommand(current func() *dashboard) *cobra.Command {
	return resourceCommand[domain.Field]{
		use:     "fields",
		short:   "Manage the fields of your farms",
		entity:  "Field",
		current: current,
		store:   func(d *dashboard) recordStore[domain.Field] { return d.fields },
	}.command()
}

func newCropsCommand(current func() *dashboard) *cobra.Command {
	return resourceCommand[domain.Crop]{
		use:     "crops",
		short:   "Manage the crop catalogue",
		entity:  "Crop",
		current: current,
		store:   func(d *dashboard) recordStore[domain.Crop] { return d.crops },
	}.command()
}
