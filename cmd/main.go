package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"multisig-dashboard/internal/app"
	"multisig-dashboard/internal/blockchain"
	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/config"
	"multisig-dashboard/internal/notify"
	"multisig-dashboard/internal/ports/http"
	"multisig-dashboard/internal/ports/http/middleware/auth"
	"multisig-dashboard/internal/pricing"
	"multisig-dashboard/internal/repository/cache"
	"multisig-dashboard/internal/repository/leveldb"
	"multisig-dashboard/internal/repository/mongodb"
	"multisig-dashboard/internal/wallet"
)

const (
	flagConfig  = "config"
	flagKeypair = "keypair"
	flagNoDB    = "no_db"
)

var rootCmd = &cobra.Command{
	Use:   "multisig-dashboard",
	Short: "dashboard and command line for Squads v4 multisigs",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, err := cmd.Flags().GetString(flagConfig)
		if err != nil {
			return fmt.Errorf("failed to read configuration: %v", err)
		}
		if err := config.Load(path); err != nil {
			return fmt.Errorf("failed to load the config file: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String(flagConfig, "", "Config file, environment variables take precedence")
	rootCmd.PersistentFlags().String(flagKeypair, "", "Signing keypair file in solana-keygen format")
	rootCmd.PersistentFlags().Bool(flagNoDB, false, "Run without the wallet to multisig store")
}

func main() {
	rootCmd.AddCommand(
		serveCommand(),
		tokenCommand(),
		createCommand(),
		transferCommand(),
		addMemberCommand(),
		removeMemberCommand(),
		thresholdCommand(),
		timeLockCommand(),
		voteCommand(voteApprove),
		voteCommand(voteReject),
		voteCommand(voteCancel),
		executeCommand(),
		statusCommand(),
		approvalsCommand(),
		portfolioCommand(),
		linkCommand(),
	)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute root command: %v", err)
	}
}

func getLogger() (*zap.Logger, error) {
	options := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zap.FatalLevel),
	}

	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	config.Development = true
	config.Level.SetLevel(zap.DebugLevel)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.WithOptions(options...), nil
}

// env holds everything a command needs; close releases what was opened.
type env struct {
	logger *zap.Logger
	app    app.App
	closer []func()
}

func (e *env) close() {
	for i := len(e.closer) - 1; i >= 0; i-- {
		e.closer[i]()
	}
	_ = e.logger.Sync()
}

func newEnv(cmd *cobra.Command) (*env, error) {
	logger, err := getLogger()
	if err != nil {
		return nil, fmt.Errorf("setting up the logger failed: %w", err)
	}
	e := &env{logger: logger}

	programID, err := squads.ParseAddress(config.GetProgramID())
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	program, err := squads.NewProgram(programID)
	if err != nil {
		return nil, err
	}
	chain := blockchain.NewClient(logger, rpc.New(config.GetRPCURL()), program)

	var lookup app.MultisigLookup
	noDB, err := cmd.Flags().GetBool(flagNoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %v", err)
	}
	if !noDB {
		repo, err := mongodb.NewConnection(logger, config.GetDbConnectionURI(), config.GetDatabaseName())
		if err != nil {
			e.close()
			return nil, fmt.Errorf("failed to connect to the database: %w", err)
		}
		e.closer = append(e.closer, repo.Disconnect)
		lookup = cache.NewCachedLookup(logger, repo, config.GetLookupCacheTTL())
	}

	recipients, err := leveldb.NewRecipientStore(config.GetRecipientsPath())
	if err != nil {
		e.close()
		return nil, fmt.Errorf("failed to open the recipients store: %w", err)
	}
	e.closer = append(e.closer, func() {
		if err := recipients.Close(); err != nil {
			logger.Error("failed to close the recipients store: " + err.Error())
		}
	})

	var events notify.Publisher = notify.Nop{}
	if brokers := config.GetKafkaBrokers(); len(brokers) > 0 {
		kafka, err := notify.NewKafka(logger, brokers, config.GetKafkaTopic())
		if err != nil {
			e.close()
			return nil, fmt.Errorf("failed to set up the event publisher: %w", err)
		}
		events = kafka
	}
	e.closer = append(e.closer, func() {
		if err := events.Close(); err != nil {
			logger.Error("failed to close the event publisher: " + err.Error())
		}
	})

	prices, err := pricing.NewPyth(logger, config.GetPriceURL(), config.GetPriceFeeds())
	if err != nil {
		e.close()
		return nil, fmt.Errorf("failed to set up the price source: %w", err)
	}

	e.app = app.NewApp(logger, chain, lookup, recipients, events, prices, app.OptionsFromConfig())
	return e, nil
}

// signer loads the keypair flag; without one the wallet is disconnected.
func signer(cmd *cobra.Command) (wallet.Wallet, error) {
	path, err := cmd.Flags().GetString(flagKeypair)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %v", err)
	}
	if path == "" {
		return wallet.Disconnected{}, nil
	}
	return wallet.LoadKeypair(path)
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "starts the dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			if config.GetAuthSecret() == "" {
				return fmt.Errorf("AUTH_SECRET is not set")
			}
			validator := auth.NewTokenValidator(e.logger, config.GetAuthSecret())
			ser := http.NewServer(e.logger, e.app, validator, config.GetPort(), config.GetRequestTimeout())

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigs
				e.logger.Info("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := ser.Shutdown(ctx); err != nil {
					e.logger.Error("failed to shut the server down: " + err.Error())
				}
			}()

			e.logger.Info("application started")
			if err := ser.Run(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				return fmt.Errorf("failed to run the server: %w", err)
			}
			e.logger.Info("application finished")
			return nil
		},
	}
}

func tokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "issues a dashboard session token for the keypair wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := signer(cmd)
			if err != nil {
				return err
			}
			key, ok := w.PublicKey()
			if !ok {
				return app.ErrWalletNotConnected
			}
			ttl, err := cmd.Flags().GetDuration("ttl")
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}
			token, err := auth.IssueToken(config.GetAuthSecret(), key, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	return cmd
}
