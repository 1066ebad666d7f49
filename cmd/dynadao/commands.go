package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacentio/dynadao/object"
	"github.com/jacentio/dynadao/store"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		shared bool
		wait   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the tenant's table (or the shared table) and wait until it is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			exists, err := a.store.TableExists(ctx, a.tenant)
			if err != nil {
				return err
			}
			target := a.store.TargetFor(a.tenant)

			switch {
			case exists:
				a.logger.Info().Str("table", target.Table).Msg("table already exists")
			case shared || target.Mode == store.Shared:
				if err := a.store.CreateSharedTable(ctx); err != nil {
					return err
				}
			default:
				if err := a.store.CreateTable(ctx, a.tenant); err != nil {
					return err
				}
			}

			if wait > 0 {
				if err := a.store.WaitForTable(ctx, a.tenant, wait); err != nil {
					return err
				}
			}
			return writeJSON(a.out, map[string]any{
				"table":   target.Table,
				"mode":    target.Mode.String(),
				"created": !exists,
			})
		},
	}
	cmd.Flags().BoolVar(&shared, "shared", false, "create the shared table with its (appid, timestamp) index")
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Minute, "how long to wait for the table to become active (0 to skip)")
	return cmd
}

// objectFlags are the flags that describe an object on the command line.
type objectFlags struct {
	id    string
	typ   string
	name  string
	props map[string]string
}

func (f *objectFlags) register(cmd *cobra.Command, withID bool) {
	if withID {
		cmd.Flags().StringVar(&f.id, "id", "", "object id")
	}
	cmd.Flags().StringVar(&f.typ, "type", "", "object type")
	cmd.Flags().StringVar(&f.name, "name", "", "object name")
	cmd.Flags().StringToStringVar(&f.props, "prop", nil, "custom property (repeatable, k=v)")
}

func (f *objectFlags) set(cmd *cobra.Command) bool {
	for _, n := range []string{"id", "type", "name", "prop"} {
		if cmd.Flags().Lookup(n) != nil && cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

// object builds the object from flags, or from a JSON document on in when no
// object flag is given.
func (f *objectFlags) object(cmd *cobra.Command, in io.Reader) (*object.Object, error) {
	if !f.set(cmd) {
		return readObject(in)
	}
	o := &object.Object{ID: f.id, Type: f.typ, Name: f.name}
	for k, v := range f.props {
		o.Set(k, v)
	}
	return o, nil
}

func newCreateCmd(a *app) *cobra.Command {
	var flags objectFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an object from flags or from a JSON document on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := flags.object(cmd, a.in)
			if err != nil {
				return err
			}
			id, err := a.store.Create(cmd.Context(), a.tenant, o)
			if err != nil {
				return err
			}
			return writeJSON(a.out, map[string]string{"id": id})
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.store.Read(cmd.Context(), a.tenant, args[0])
			if err != nil {
				return err
			}
			return writeJSON(a.out, a.fields(o))
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var flags objectFlags
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the mutable fields of an object (flags or JSON on stdin, id required)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := flags.object(cmd, a.in)
			if err != nil {
				return err
			}
			if o.ID == "" {
				return errors.New("update requires an object id")
			}
			if err := a.store.Update(cmd.Context(), a.tenant, o); err != nil {
				return err
			}
			return writeJSON(a.out, map[string]any{"id": o.ID, "updated": o.Updated})
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete objects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objs := make([]*object.Object, len(args))
			for i, id := range args {
				objs[i] = &object.Object{ID: id}
			}
			var err error
			if len(objs) == 1 {
				err = a.store.Delete(cmd.Context(), a.tenant, objs[0])
			} else {
				err = a.store.DeleteAll(cmd.Context(), a.tenant, objs)
			}
			if err != nil {
				return err
			}
			return writeJSON(a.out, map[string]any{"deleted": args})
		},
	}
}

func newGetAllCmd(a *app) *cobra.Command {
	var allColumns bool
	cmd := &cobra.Command{
		Use:   "get-all <id>...",
		Short: "Print several objects with batch reads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.store.ReadAll(cmd.Context(), a.tenant, args, allColumns)
			if err != nil {
				return err
			}
			objs := make([]map[string]string, 0, res.Len())
			for _, o := range res.Objects() {
				objs = append(objs, a.fields(o))
			}
			missing := res.Missing()
			if missing == nil {
				missing = []string{}
			}
			return writeJSON(a.out, map[string]any{
				"objects": objs,
				"missing": missing,
			})
		},
	}
	cmd.Flags().BoolVar(&allColumns, "all-columns", true, "fetch every attribute (false: only id and type)")
	return cmd
}

func newPageCmd(a *app) *cobra.Command {
	var (
		limit  int
		cursor string
		pages  int
	)
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Page through the tenant's objects, one JSON document per page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &store.Pager{Limit: limit, LastKey: cursor}
			size := limit
			if size <= 0 {
				size = store.DefaultPageLimit
			}
			for n := 0; pages <= 0 || n < pages; n++ {
				page, err := a.store.ReadPage(cmd.Context(), a.tenant, p)
				if err != nil {
					return err
				}
				if len(page) == 0 {
					break
				}
				objs := make([]map[string]string, 0, len(page))
				for _, o := range page {
					objs = append(objs, a.fields(o))
				}
				if err := writeJSON(a.out, map[string]any{
					"objects": objs,
					"cursor":  p.LastKey,
					"count":   p.Count,
				}); err != nil {
					return err
				}
				// A short page is the last one.
				if len(page) < size {
					break
				}
			}
			a.logger.Info().Int("count", p.Count).Str("cursor", p.LastKey).Msg("paging finished")
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", store.DefaultPageLimit, "objects per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "resume from a cursor printed by a previous run")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to read (0 reads until the end)")
	return cmd
}

// fields renders an object as its stored name to value mapping.
func (a *app) fields(o *object.Object) map[string]string {
	return a.store.Codec().Schema().Fields(o, false)
}

func readObject(in io.Reader) (*object.Object, error) {
	var fields map[string]string
	if err := json.NewDecoder(in).Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	o := object.FromFields(fields)
	if o == nil {
		return nil, errors.New("empty object")
	}
	return o, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
