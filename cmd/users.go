package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/shortlink/internal/cache"
	"github.com/jon4hz/shortlink/internal/config"
	"github.com/jon4hz/shortlink/internal/database"
	"github.com/jon4hz/shortlink/internal/users"
	"github.com/jon4hz/shortlink/internal/usertable"
	"github.com/jon4hz/shortlink/pkg/shortlink"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var usersCmdFlags struct {
	Server   string
	APIKey   string
	Search   string
	Limit    int
	Page     int
	Email    string
	Password string
	Role     string
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Administrate users through the API",
	Long:  `List, create, ban and delete users of a running Shortlink server. Requires the API key of an admin.`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, _ []string) error {
		me, client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		tbl := usertable.New(client, me.Email)
		if err := tbl.SetLimit(cmd.Context(), usersCmdFlags.Limit); err != nil {
			return err
		}
		if err := tbl.SetSearch(cmd.Context(), usersCmdFlags.Search); err != nil {
			return err
		}
		for range usersCmdFlags.Page - 1 {
			if !tbl.HasNext() {
				break
			}
			if err := tbl.NextPage(cmd.Context()); err != nil {
				return err
			}
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("ID", "Email", "Role", "Banned", "Links", "Created")
		for _, r := range tbl.Rows() {
			email := r.User.Email
			if r.IsSelf {
				email += " (you)"
			}
			t.Row(
				strconv.FormatUint(uint64(r.User.ID), 10),
				email,
				r.User.Role,
				lo.Ternary(r.User.Banned, "yes", "no"),
				humanize.Comma(r.User.Links),
				r.User.CreatedAgo,
			)
		}
		fmt.Println(t)

		page, pages := tbl.Page()
		fmt.Printf("page %d of %d, %s users\n", page, pages, humanize.Comma(tbl.Total()))
		return nil
	},
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		me, client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		tbl := usertable.New(client, me.Email)
		identity, err := tbl.Create(cmd.Context(), usertable.CreateForm{
			Email:           usersCmdFlags.Email,
			Password:        usersCmdFlags.Password,
			ConfirmPassword: usersCmdFlags.Password,
			Role:            usersCmdFlags.Role,
		})
		if identity == nil {
			return err
		}
		fmt.Printf("created %s\napi key: %s\n", identity.Email, identity.APIKey)
		return nil
	},
}

func userIDArg(args []string) (uint, error) {
	id, err := strconv.ParseUint(args[0], 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q", args[0])
	}
	return uint(id), nil
}

func banCommand(use, short string, banned bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := userIDArg(args)
			if err != nil {
				return err
			}
			_, client, err := apiClient(cmd)
			if err != nil {
				return err
			}
			if err := client.EditUser(cmd.Context(), id, shortlink.EditUserRequest{Banned: lo.ToPtr(banned)}); err != nil {
				return err
			}
			log.Info("User updated", "id", id, "banned", banned)
			return nil
		},
	}
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user and their links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := userIDArg(args)
		if err != nil {
			return err
		}
		_, client, err := apiClient(cmd)
		if err != nil {
			return err
		}
		if err := client.DeleteUser(cmd.Context(), id); err != nil {
			if shortlink.IsStatus(err, 404) {
				return fmt.Errorf("user %d does not exist", id)
			}
			return err
		}
		log.Info("User deleted", "id", id)
		return nil
	},
}

// usersBootstrapCmd talks to the database directly so the first admin can
// be created before anyone holds an API key.
var usersBootstrapCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create an admin directly in the database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		db, err := database.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close() //nolint: errcheck

		repo := users.NewRepository(db, cache.NewUserCache(cfg.Cache))
		user, err := repo.Create(cmd.Context(), users.NewUser{
			Email:    usersCmdFlags.Email,
			Password: usersCmdFlags.Password,
			Role:     database.RoleAdmin,
		})
		if err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
		fmt.Printf("created %s\napi key: %s\n", user.Email, user.APIKey)
		return nil
	},
}

func apiClient(cmd *cobra.Command) (*shortlink.Identity, *shortlink.Client, error) {
	if usersCmdFlags.APIKey == "" {
		return nil, nil, errors.New("an api key is required (--api-key or SHORTLINK_API_KEY)")
	}
	client := shortlink.New(usersCmdFlags.Server, usersCmdFlags.APIKey)
	me, err := client.Me(cmd.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	return me, client, nil
}

func init() {
	usersCmd.PersistentFlags().StringVar(&usersCmdFlags.Server, "server", "http://localhost:3000", "Base URL of the Shortlink server")
	usersCmd.PersistentFlags().StringVar(&usersCmdFlags.APIKey, "api-key", os.Getenv("SHORTLINK_API_KEY"), "API key of an admin")

	usersListCmd.Flags().StringVarP(&usersCmdFlags.Search, "search", "s", "", "Only show users whose email contains this term")
	usersListCmd.Flags().IntVarP(&usersCmdFlags.Limit, "limit", "l", usertable.LimitOptions[0], "Users per page")
	usersListCmd.Flags().IntVarP(&usersCmdFlags.Page, "page", "p", 1, "Page to show")

	for _, c := range []*cobra.Command{usersCreateCmd, usersBootstrapCmd} {
		c.Flags().StringVar(&usersCmdFlags.Email, "email", "", "Email of the new user")
		c.Flags().StringVar(&usersCmdFlags.Password, "password", "", "Password of the new user")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	usersCreateCmd.Flags().StringVar(&usersCmdFlags.Role, "role", "user", "Role of the new user (user, admin)")

	usersCmd.AddCommand(
		usersListCmd,
		usersCreateCmd,
		banCommand("ban", "Ban a user", true),
		banCommand("unban", "Lift the ban of a user", false),
		usersDeleteCmd,
		usersBootstrapCmd,
	)
	rootCmd.AddCommand(usersCmd)
}
