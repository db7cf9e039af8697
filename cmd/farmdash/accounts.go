package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/application"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/export"
	"github.com/spf13/cobra"
)

func newLoginCommand(current func() *dashboard) *cobra.Command {
	var creds domain.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the farm management API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			var err error
			if creds.Email == "" {
				if creds.Email, err = d.readLine("Email: "); err != nil {
					return err
				}
			}
			if creds.Password == "" {
				if creds.Password, err = d.readLine("Password: "); err != nil {
					return err
				}
			}

			if err = d.session.Login(cmd.Context(), d.auth, creds); err != nil {
				return failure(err, "")
			}

			user, _ := d.session.CurrentUser()
			fmt.Fprintf(d.out, "Logged in as %s (%s)\n", displayName(user), user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password, asked for when omitted")

	return cmd
}

func newLogoutCommand(current func() *dashboard) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			if err := d.session.Logout(); err != nil {
				return err
			}

			fmt.Fprintln(d.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCommand(current func() *dashboard) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			user, ok := d.session.CurrentUser()
			if !ok {
				fmt.Fprintln(d.out, "Not logged in")
				return nil
			}

			return renderRecord(d.out, user)
		},
	}
}

func newRegisterCommand(current func() *dashboard) *cobra.Command {
	var registration domain.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			var err error
			if registration.Password == "" {
				if registration.Password, err = d.readLine("Password: "); err != nil {
					return err
				}
				if registration.ConfirmPassword, err = d.readLine("Repeat password: "); err != nil {
					return err
				}
			} else {
				registration.ConfirmPassword = registration.Password
			}

			if err = registration.Validate(); err != nil {
				return failure(err, "")
			}

			user, err := d.auth.Register(cmd.Context(), registration)
			if err != nil {
				return failure(err, "")
			}

			fmt.Fprintf(d.out, "Registered %s, you can now log in\n", displayName(user))
			return nil
		},
	}

	cmd.Flags().StringVar(&registration.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&registration.Email, "email", "", "email address")
	cmd.Flags().StringVar(&registration.Phone, "phone", "", "ten digit phone number")
	cmd.Flags().StringVar(&registration.Address, "address", "", "postal address")
	cmd.Flags().StringVar(&registration.Password, "password", "", "password, asked for when omitted")

	return cmd
}

func newProfileCommand(current func() *dashboard) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Edit your own profile",
	}

	var sets []string
	update := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields with --set key=value pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			form := application.NewProfileForm(d.users, d.session, d.log)

			var assignErr error
			form.Edit(func(patch *domain.UserPatch) {
				assignErr = assign(patch, sets)
			})
			if assignErr != nil {
				return assignErr
			}

			user, err := form.Submit(cmd.Context())
			if err != nil {
				return formFailure(err, form.Message(), form.Errors())
			}

			return renderRecord(d.out, user)
		},
	}
	update.Flags().StringArrayVar(&sets, "set", nil, "field=value to change (repeatable)")

	upload := &cobra.Command{
		Use:   "upload-image <file>",
		Short: "Upload a new profile picture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			form := application.NewProfileForm(d.users, d.session, d.log)
			reference, err := form.UploadImage(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return formFailure(err, form.Message(), nil)
			}

			fmt.Fprintf(d.out, "Profile image stored at %s\n", reference)
			return nil
		},
	}

	cmd.AddCommand(update, upload)
	return cmd
}

func newUsersCommand(current func() *dashboard) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Administer user accounts",
	}

	var xlsx string
	list := &cobra.Command{
		Use:   "list",
		Short: "List every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			view := application.NewUserListView(d.users, d.log)
			if err := view.Load(cmd.Context()); err != nil {
				return errors.New(view.Message())
			}

			if xlsx != "" {
				if err := export.WriteFile(xlsx, "Users", view.Items()); err != nil {
					return err
				}
				fmt.Fprintf(d.out, "Exported %d users to %s\n", len(view.Items()), xlsx)
				return nil
			}

			return renderTable(d.out, view.Items())
		},
	}
	list.Flags().StringVar(&xlsx, "xlsx", "", "export the list to an Excel workbook at this path")

	role := &cobra.Command{
		Use:   "role <id> <User|Admin>",
		Short: "Change the role of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			view := application.NewUserListView(d.users, d.log)
			if err = view.Load(cmd.Context()); err != nil {
				return errors.New(view.Message())
			}

			form, err := view.EditForm(id)
			if err != nil {
				return err
			}

			form.Edit(func(u *domain.User) { u.Role = domain.Role(args[1]) })

			saved, err := form.Submit(cmd.Context())
			if err != nil {
				return formFailure(err, form.Message(), form.Errors())
			}

			fmt.Fprintf(d.out, "%s is now %s\n", displayName(saved), saved.Role)
			return nil
		},
	}

	var yes bool
	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return deleteRecord(cmd.Context(), d, application.NewUserListView(d.users, d.log), id, yes)
		},
	}
	remove.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(list, role, remove)
	return cmd
}

func displayName(u domain.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
