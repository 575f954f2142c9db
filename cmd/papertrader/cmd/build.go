package cmd

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/engine"
	"github.com/rustyeddy/papertrader/feed"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/rustyeddy/papertrader/strategies"
)

// buildJournal constructs the journal backend named by the config.
func buildJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "csv":
		return journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	default:
		return journal.NewMemory(), nil
	}
}

// buildBroker constructs the simulated broker from the config.
func buildBroker(cfg *config.Config, j journal.Journal) *sim.Broker {
	return sim.NewBroker(sim.BrokerOptions{
		StartingCash: cfg.Account.Cash,
		Fees: sim.FeeModel{
			TakerRate: cfg.Broker.TakerFeeRate,
			MakerRate: cfg.Broker.MakerFeeRate,
		},
		Slippage: sim.NewSlippageModel(
			cfg.Broker.SlippageBps, cfg.Broker.ImpactBps, cfg.Broker.JitterBps, cfg.Broker.Seed),
		Latency: sim.NewLatencyModel(
			time.Duration(cfg.Broker.LatencyMs)*time.Millisecond,
			time.Duration(cfg.Broker.LatencyJitter)*time.Millisecond,
			cfg.Broker.Seed),
		AllowShort: cfg.Broker.AllowShort,
		Journal:    j,
	})
}

// buildEngine wires an engine from the config: one strategy instance per
// asset, the sizer and limits, and the mode. Live mode requires venue
// credentials in the environment.
func buildEngine(cfg *config.Config, b *sim.Broker, fd feed.Feed, logger *zap.Logger) (*engine.Engine, error) {
	params := strategies.Params{
		Fast:      cfg.Strategy.Fast,
		Slow:      cfg.Strategy.Slow,
		RSIPeriod: cfg.Strategy.RSIPeriod,
		ATRPeriod: cfg.Strategy.ATRPeriod,
		ATRMult:   cfg.Strategy.ATRMult,
		Lookback:  cfg.Strategy.Lookback,
	}

	assets := make([]engine.Asset, 0, len(cfg.Assets))
	strats := make(map[string]strategies.Strategy, len(cfg.Assets))
	for _, a := range cfg.Assets {
		strat, err := strategies.ByName(cfg.Strategy.Name, params)
		if err != nil {
			return nil, fmt.Errorf("strategy: %w", err)
		}
		assets = append(assets, engine.Asset{Symbol: a.Symbol, Timeframe: a.Timeframe})
		strats[a.Symbol] = strat
	}

	mode := engine.Paper()
	switch cfg.Engine.Mode {
	case "backtest":
		mode = engine.Backtest()
	case "live":
		env, err := config.LoadLiveEnv()
		if err != nil {
			return nil, err
		}
		mode, err = engine.NewLiveMode(engine.LiveCredentials{
			APIKey:    env.APIKey,
			APISecret: env.APISecret,
		})
		if err != nil {
			return nil, err
		}
	}

	sleep, err := cfg.Engine.ParseSleep()
	if err != nil {
		return nil, err
	}

	return engine.New(engine.Config{
		Mode:       mode,
		Assets:     assets,
		Strategies: strats,
		Sizer: risk.Sizer{
			RiskFraction: cfg.Risk.RiskFraction,
			MinStrength:  cfg.Risk.MinStrength,
			MinQuantity:  cfg.Risk.MinQuantity,
		},
		Limits: risk.Limits{
			MaxPositionNotional: cfg.Risk.MaxPositionNotional,
			MaxGrossExposure:    cfg.Risk.MaxGrossExposure,
			MaxDrawdownPct:      cfg.Risk.MaxDrawdownPct,
			MaxOrdersPerCycle:   cfg.Risk.MaxOrdersPerCycle,
			AllowShort:          cfg.Risk.AllowShort,
			AllowReduce:         cfg.Risk.AllowReduce,
			MinQuantity:         cfg.Risk.MinQuantity,
		},
		Feed:       fd,
		Iterations: cfg.Engine.Iterations,
		Sleep:      sleep,
		Logger:     logger,
	}, b)
}

// printRecap renders a run summary to stdout.
func printRecap(r engine.Recap) {
	fmt.Println("\nRecap:")
	fmt.Printf("  Starting Cash:  $%.2f\n", r.StartingCash)
	fmt.Printf("  Cash:           $%.2f\n", r.Portfolio.Cash)
	fmt.Printf("  Equity:         $%.2f\n", r.Portfolio.Equity)
	fmt.Printf("  Total PnL:      $%.2f\n", r.Metrics.TotalPnL)
	fmt.Printf("  Realized PnL:   $%.2f\n", r.Portfolio.RealizedPL)
	fmt.Printf("  Fee Drag:       $%.2f\n", r.Metrics.FeeDrag)
	fmt.Printf("  Slippage Drag:  $%.2f\n", r.Metrics.SlippageDrag)
	fmt.Printf("  Max Drawdown:   %.2f%%\n", 100*r.Metrics.MaxDrawdown)
	fmt.Printf("  Win Rate:       %.1f%%\n", 100*r.Metrics.WinRate)
	fmt.Printf("  Fills:          %d\n", r.Metrics.Fills)
	fmt.Printf("  Rejections:     %d\n", r.Metrics.Rejections)
	fmt.Printf("  Iterations:     %d\n", r.Iterations)

	if len(r.Portfolio.Positions) > 0 {
		fmt.Println("\nOpen positions:")
		for sym, pos := range r.Portfolio.Positions {
			fmt.Printf("  %-10s %+.4f @ %.4f\n", sym, pos.Quantity, pos.AvgEntry)
		}
	}
}
