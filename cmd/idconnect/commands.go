package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/idconnect/pkg/connector/core"
	"github.com/ajitpratap0/idconnect/pkg/connector/filter"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/script"
	"github.com/ajitpratap0/idconnect/pkg/security"
)

// withSession opens a session around fn and closes it afterwards.
func withSession(opts *rootOptions, fn func(cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, opts)
		if err != nil {
			return err
		}
		defer s.close(cmd.Context())
		return fn(cmd, s, args)
	}
}

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a connector file without contacting the resource",
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			if err := s.Validate(); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), opts, map[string]interface{}{
				"connector":     s.Info().Name,
				"valid":         true,
				"configuration": s.Configuration().Fields(),
			})
		}),
	}
}

func newTestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the configuration against the live resource",
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			if err := s.Test(cmd.Context()); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), opts, map[string]interface{}{
				"connector": s.Info().Name,
				"ok":        true,
			})
		}),
	}
}

func newSchemaCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the connector schema",
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			sch, err := s.Schema(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), opts, sch)
		}),
	}
}

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var class, cookie string
	var filters, attrs []string
	var pageSize, offset int

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search objects of a class",
		Long: `Search objects of a class. Filters are joined with AND and use the forms
name=value, name!=value, name*=part, name^=prefix, name$=suffix,
name>=n, name<n and name? (presence).

Objects are written one per line. With --page-size a final {"result": ...}
line carries the paging report.`,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			flt, err := filter.ParseAll(filters)
			if err != nil {
				return err
			}
			b := objects.NewOperationOptionsBuilder()
			if len(attrs) > 0 {
				b.SetAttributesToGet(attrs...)
			}
			if pageSize > 0 {
				b.SetPageSize(pageSize)
			}
			if cookie != "" {
				b.SetPagedResultsCookie(cookie)
			}
			if offset > 0 {
				b.SetPagedResultsOffset(offset)
			}

			enc := newEncoder(cmd.OutOrStdout(), opts, false)
			var encErr error
			result, err := s.Search(cmd.Context(), objects.NewObjectClass(class), flt,
				core.ResultsHandlerFunc(func(obj *objects.ConnectorObject) bool {
					encErr = enc.Encode(obj)
					return encErr == nil
				}), b.Build())
			if err != nil {
				return err
			}
			if encErr != nil {
				return encErr
			}
			if result != nil {
				if err := enc.Encode(map[string]interface{}{"result": result}); err != nil {
					return err
				}
			}
			return enc.Close()
		}),
	}
	cmd.Flags().StringVar(&class, "class", objects.Account.Name(), "Object class")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Filter expression (repeatable)")
	cmd.Flags().StringSliceVar(&attrs, "attrs", nil, "Attributes to return")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size; 0 returns every object")
	cmd.Flags().StringVar(&cookie, "cookie", "", "Paged results cookie from a previous page")
	cmd.Flags().IntVar(&offset, "offset", 0, "1-based offset of the first result")
	return cmd
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	var class, uid string
	var attrs []string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Read one object by uid",
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			oc := objects.NewObjectClass(class)
			b := objects.NewOperationOptionsBuilder()
			if len(attrs) > 0 {
				b.SetAttributesToGet(attrs...)
			}
			obj, err := s.GetObject(cmd.Context(), oc, objects.NewUid(uid), b.Build())
			if err != nil {
				return err
			}
			if obj == nil {
				return errors.New(errors.ErrorTypeUnknownUid, oc.Name()+" "+uid+" does not exist").
					WithDetail("uid", uid).
					WithDetail("object_class", oc.Name())
			}
			return writeJSON(cmd.OutOrStdout(), opts, obj)
		}),
	}
	cmd.Flags().StringVar(&class, "class", objects.Account.Name(), "Object class")
	cmd.Flags().StringVar(&uid, "uid", "", "Object uid")
	cmd.Flags().StringSliceVar(&attrs, "attrs", nil, "Attributes to return")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func newCreateCommand(opts *rootOptions) *cobra.Command {
	var class string
	var pairs []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an object",
		Long: `Create an object from --attr name=value pairs. Repeating a name adds a
value. __NAME__ is required; __PASSWORD__ values are kept as secrets.`,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			oc := objects.NewObjectClass(class)
			attrs, err := parseAttributes(cmd.Context(), s.Facade, oc, pairs)
			if err != nil {
				return err
			}
			uid, err := s.Create(cmd.Context(), oc, attrs, nil)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), opts, map[string]interface{}{"uid": uid})
		}),
	}
	cmd.Flags().StringVar(&class, "class", objects.Account.Name(), "Object class")
	cmd.Flags().StringArrayVarP(&pairs, "attr", "a", nil, "Attribute as name=value (repeatable)")
	return cmd
}

// update modes
const (
	modeReplace = "replace"
	modeAdd     = "add"
	modeRemove  = "remove"
)

func newUpdateCommand(opts *rootOptions) *cobra.Command {
	var class, uid, mode string
	var pairs []string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update an object",
		Long: `Update an object. In replace mode "name=" clears the attribute; add and
remove mode change individual values of multi-valued attributes.`,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			oc := objects.NewObjectClass(class)
			attrs, err := parseAttributes(cmd.Context(), s.Facade, oc, pairs)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var updated objects.Uid
			switch mode {
			case modeReplace:
				updated, err = s.Update(ctx, oc, objects.NewUid(uid), attrs, nil)
			case modeAdd:
				updated, err = s.AddAttributeValues(ctx, oc, objects.NewUid(uid), attrs, nil)
			case modeRemove:
				updated, err = s.RemoveAttributeValues(ctx, oc, objects.NewUid(uid), attrs, nil)
			default:
				return errors.New(errors.ErrorTypeValidation, "mode must be replace, add or remove").
					WithDetail("mode", mode)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), opts, map[string]interface{}{"uid": updated})
		}),
	}
	cmd.Flags().StringVar(&class, "class", objects.Account.Name(), "Object class")
	cmd.Flags().StringVar(&uid, "uid", "", "Object uid")
	cmd.Flags().StringVar(&mode, "mode", modeReplace, "Update mode (replace, add, remove)")
	cmd.Flags().StringArrayVarP(&pairs, "attr", "a", nil, "Attribute as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	var class, uid string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an object",
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			if err := s.Delete(cmd.Context(), objects.NewObjectClass(class), objects.NewUid(uid), nil); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), opts, map[string]interface{}{"deleted": objects.NewUid(uid)})
		}),
	}
	cmd.Flags().StringVar(&class, "class", objects.Account.Name(), "Object class")
	cmd.Flags().StringVar(&uid, "uid", "", "Object uid")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func newAuthenticateCommand(opts *rootOptions) *cobra.Command {
	var class, username, passwordEnv string

	cmd := &cobra.Command{
		Use:   "authenticate",
		Short: "Check a username and password",
		Long: `Check a username and password. The password is read from the environment
variable named by --password-env so it never appears on the command line.`,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			secret, ok := os.LookupEnv(passwordEnv)
			if !ok {
				return errors.New(errors.ErrorTypeConfig, "password variable is not set").
					WithDetail("variable", passwordEnv)
			}
			password := security.GuardString(secret)
			defer password.Dispose()

			uid, err := s.Authenticate(cmd.Context(), objects.NewObjectClass(class), username, password, nil)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), opts, map[string]interface{}{"uid": uid})
		}),
	}
	cmd.Flags().StringVar(&class, "class", objects.Account.Name(), "Object class")
	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().StringVar(&passwordEnv, "password-env", "IDCONNECT_PASSWORD", "Environment variable holding the password")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var class, tokenFile string
	var latest bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Report changes since the stored sync token",
		Long: `Report changes since the token stored in --token-file. Deltas are written
one per line, followed by a {"token": ...} line. The new token is saved to
the token file only after every delta was written.

With --latest no deltas are read; the current token is stored instead, so
the next sync starts from now.`,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			ctx := cmd.Context()
			oc := objects.NewObjectClass(class)
			enc := newEncoder(cmd.OutOrStdout(), opts, false)

			if latest {
				token, err := s.GetLatestSyncToken(ctx, oc)
				if err != nil {
					return err
				}
				if err := saveToken(tokenFile, token); err != nil {
					return err
				}
				if err := enc.Encode(map[string]interface{}{"token": token}); err != nil {
					return err
				}
				return enc.Close()
			}

			token, err := loadToken(tokenFile)
			if err != nil {
				return err
			}
			var encErr error
			next, err := s.Sync(ctx, oc, token, core.SyncResultsHandlerFunc(func(d *objects.SyncDelta) bool {
				encErr = enc.Encode(d)
				return encErr == nil
			}), nil)
			if err != nil {
				return err
			}
			if encErr != nil {
				return encErr
			}
			if next != nil && tokenFile != "" {
				if err := saveToken(tokenFile, next); err != nil {
					return err
				}
			}
			if err := enc.Encode(map[string]interface{}{"token": next}); err != nil {
				return err
			}
			return enc.Close()
		}),
	}
	cmd.Flags().StringVar(&class, "class", objects.Account.Name(), "Object class")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "File holding the sync token between runs")
	cmd.Flags().BoolVar(&latest, "latest", false, "Store the latest token without reading deltas")
	return cmd
}

func newScriptCommand(opts *rootOptions) *cobra.Command {
	var language, text, file string
	var pairs []string
	var onResource bool

	cmd := &cobra.Command{
		Use:   "script",
		Short: "Run a script on the connector or on the resource",
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read script file").
						WithDetail("path", file)
				}
				text = string(data)
			}
			args, err := parseArguments(pairs)
			if err != nil {
				return err
			}

			sc := objects.NewScriptContext(language, text, args)
			var result interface{}
			if onResource {
				result, err = s.RunScriptOnResource(cmd.Context(), sc, nil)
			} else {
				result, err = s.RunScriptOnConnector(cmd.Context(), sc, nil)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), opts, map[string]interface{}{"result": result})
		}),
	}
	cmd.Flags().StringVar(&language, "language", script.LanguageExpr, "Script language ("+strings.Join(script.Languages(), ", ")+")")
	cmd.Flags().StringVar(&text, "text", "", "Script text")
	cmd.Flags().StringVar(&file, "file", "", "Read the script text from a file")
	cmd.Flags().StringArrayVar(&pairs, "arg", nil, "Script argument as name=value (repeatable)")
	cmd.Flags().BoolVar(&onResource, "on-resource", false, "Run the script on the resource instead of the connector")
	cmd.MarkFlagsMutuallyExclusive("text", "file")
	return cmd
}
