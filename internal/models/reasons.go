package models

// Reason codes for the options path. These are part of the external
// contract: consumers persist and alert on them, so a shipped code must
// never change meaning.
const (
	ReasonTimeGuardNoNewPositions = "TIME_GUARD_NO_NEW_POSITIONS"
	ReasonUnsupportedUnderlying   = "UNSUPPORTED_UNDERLYING"
	ReasonEmptyChain              = "EMPTY_CHAIN"
	ReasonNoEligibleExpiry        = "NO_ELIGIBLE_EXPIRY"
	ReasonNoStrikesForExpiry      = "NO_STRIKES_FOR_EXPIRY"
	ReasonNoOTMStrike             = "NO_OTM_STRIKE"
	ReasonNoStrikeMatch           = "NO_STRIKE_MATCH"
	ReasonLiquidityGuard          = "LIQUIDITY_GUARD"

	ReasonMaxContractsPerTrade = "MAX_CONTRACTS_PER_TRADE"
	ReasonMaxContractsPerDay   = "MAX_CONTRACTS_PER_DAY"
	ReasonTimeOfDayCutoff      = "TIME_OF_DAY_CUTOFF"
	ReasonMaxNetDelta          = "MAX_NET_DELTA"
	ReasonMaxNetGamma          = "MAX_NET_GAMMA"

	ReasonTradingDisabled    = "TRADING_DISABLED"
	ReasonDrawdownHalt       = "DRAWDOWN_HALT"
	ReasonStrategyDailyHalt  = "STRATEGY_DAILY_HALT"
	ReasonMarketOpenCooldown = "MARKET_OPEN_COOLDOWN"
	ReasonControlReadFailed  = "CONTROL_READ_FAILED"
	ReasonSessionClosed      = "SESSION_CLOSED"
)

// Reason codes for the generic numeric limits path.
const (
	ReasonInvalidSymbol   = "invalid_symbol"
	ReasonInvalidSide     = "invalid_side"
	ReasonInvalidQuantity = "invalid_quantity"
	ReasonInvalidPrice    = "invalid_price"
	ReasonInvalidNotional = "invalid_notional"

	ReasonMaxDailyLossExceeded          = "max_daily_loss_exceeded"
	ReasonMaxOrderNotionalExceeded      = "max_order_notional_exceeded"
	ReasonMaxTradesPerDayExceeded       = "max_trades_per_day_exceeded"
	ReasonMaxPerSymbolExposureExceeded  = "max_per_symbol_exposure_exceeded"
	ReasonMaxContractsPerSymbolExceeded = "max_contracts_per_symbol_exceeded"
	ReasonMaxGammaExposureExceeded      = "max_gamma_exposure_exceeded"

	ReasonDailyPnLMissing           = "daily_pnl_missing"
	ReasonTradesTodayMissing        = "trades_today_missing"
	ReasonCurrentPositionQtyMissing = "current_position_qty_missing"
	ReasonCurrentContractQtyMissing = "current_contract_qty_missing"
	ReasonGammaMissing              = "gamma_missing"
)
