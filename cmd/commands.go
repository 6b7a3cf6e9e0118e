package cmd

import (
	"audio-service/pkg/rabbitmq"
	"audio-service/repository"
	server2 "audio-service/server"
	"audio-service/service"
	"time"

	"github.com/spf13/cobra"
)

func server(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server2.RunHttp(a.cfg)
		},
	}
}

func migrate(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(a.cfg)
			return repository.RunMigrations(ctx, a.cfg.DB)
		},
	}
}

func user(a *app) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "manage users",
	}

	var username, email, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(a.cfg)
			repo, err := server2.NewRepository(a.cfg)
			if err != nil {
				return err
			}
			u, err := service.NewUserService(repo).RegisterUser(ctx, username, email, password)
			if err != nil {
				return err
			}
			cmd.Printf("created user %s with id %d\n", u.Username, u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "username")
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&password, "password", "", "password")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	userCmd.AddCommand(create)
	return userCmd
}

func purgeFailed(a *app) *cobra.Command {
	var olderThan time.Duration
	purgeCmd := &cobra.Command{
		Use:   "purge-failed",
		Short: "delete failed and abandoned uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(a.cfg)
			repo, err := server2.NewRepository(a.cfg)
			if err != nil {
				return err
			}
			blobs, err := server2.NewBlobStore(ctx, a.cfg)
			if err != nil {
				return err
			}
			purged, err := service.NewAudioService(repo, blobs, rabbitmq.NopPublisher{}).PurgeFailedUploads(ctx, olderThan)
			cmd.Printf("purged %d uploads\n", purged)
			return err
		},
	}
	purgeCmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "only purge uploads started before this long ago")
	return purgeCmd
}
