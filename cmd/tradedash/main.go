package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"tradedash/internal/config"
	"tradedash/internal/dashboard"
	"tradedash/internal/domain"
	"tradedash/internal/push"
	"tradedash/internal/util"
	"tradedash/pkg/dashclient"
)

const (
	// updateEvery is the period of the account/orders refresh requester.
	updateEvery = 10 * time.Second
	chartLimit  = dashboard.ChartReloadLimit
)

// Messages.
type pushEventMsg struct{ evt push.Event }
type pushClosedMsg struct{}
type tickMsg time.Time

type initialDataMsg struct {
	account *domain.AccountSnapshot
	history []domain.Order
	err     error
}

type chartDataMsg struct {
	symbol   string
	interval string
	candles  []domain.Candle
	err      error
}

type orderPlacedMsg struct{ err error }
type cancelDoneMsg struct{ err error }

func tickCmd() tea.Cmd {
	return tea.Tick(updateEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// focus identifies which order-form input owns the keyboard.
type focus int

const (
	focusNone focus = iota
	focusQty
	focusPrice
	focusStop
)

// Model.
type model struct {
	ctrl    *dashboard.Controller
	api     *dashclient.Client
	events  <-chan push.Event
	cancel  context.CancelFunc
	logger  *slog.Logger
	symbols []string

	qtyInput   textinput.Model
	priceInput textinput.Model
	stopInput  textinput.Model
	focused    focus

	historyFilters []domain.OrderStatus
	filterIdx      int

	width, height int
	ready         bool
}

func initialModel(ctrl *dashboard.Controller, api *dashclient.Client, events <-chan push.Event, cancel context.CancelFunc, symbols []string, logger *slog.Logger) model {
	qty := textinput.New()
	qty.Placeholder = "0.0000"
	qty.CharLimit = 16
	qty.Width = 12

	price := textinput.New()
	price.Placeholder = "0.00"
	price.CharLimit = 16
	price.Width = 12

	stop := textinput.New()
	stop.Placeholder = "0.00"
	stop.CharLimit = 16
	stop.Width = 12

	return model{
		ctrl:       ctrl,
		api:        api,
		events:     events,
		cancel:     cancel,
		logger:     logger,
		symbols:    symbols,
		qtyInput:   qty,
		priceInput: price,
		stopInput:  stop,
		historyFilters: []domain.OrderStatus{
			"", domain.OrderStatusFilled, domain.OrderStatusCanceled, domain.OrderStatusNew,
		},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.listenPush(),
		m.fetchInitialData(),
		m.fetchChartData(),
		tickCmd(),
	)
}

// listenPush waits for the next event on the push channel.
func (m model) listenPush() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return pushClosedMsg{}
		}
		return pushEventMsg{evt: evt}
	}
}

func (m model) fetchInitialData() tea.Cmd {
	api := m.api
	symbol := m.ctrl.Symbol()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		account, err := api.Balance(ctx)
		if err != nil {
			return initialDataMsg{err: err}
		}
		history, err := api.OrderHistory(ctx, symbol)
		if err != nil {
			return initialDataMsg{err: err}
		}
		return initialDataMsg{account: account, history: history}
	}
}

func (m model) fetchChartData() tea.Cmd {
	api := m.api
	symbol := m.ctrl.Symbol()
	interval := m.ctrl.Interval()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		candles, err := api.Klines(ctx, symbol, interval, chartLimit)
		return chartDataMsg{symbol: symbol, interval: interval, candles: candles, err: err}
	}
}

func (m model) submitOrder() tea.Cmd {
	req := domain.OrderRequest{
		Symbol:   m.ctrl.Symbol(),
		Side:     string(m.ctrl.Side()),
		Type:     string(m.ctrl.OrderType()),
		Quantity: parseInput(m.qtyInput.Value()),
		Price:    parseInput(m.priceInput.Value()),
	}
	if m.ctrl.OrderType() == domain.OrderTypeStopLimit {
		req.StopPrice = parseInput(m.stopInput.Value())
	}
	if err := req.Validate(); err != nil {
		return func() tea.Msg { return orderPlacedMsg{err: err} }
	}

	m.ctrl.OrderSubmitted()
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var err error
		if domain.OrderType(req.Type) == domain.OrderTypeTWAP {
			err = api.StartTwap(ctx, req)
		} else {
			_, err = api.PlaceOrder(ctx, req)
		}
		return orderPlacedMsg{err: err}
	}
}

func (m model) cancelFirstOpenOrder() tea.Cmd {
	open := m.ctrl.OpenOrders()
	if len(open) == 0 {
		return nil
	}
	api := m.api
	symbol := open[0].Symbol
	orderID := open[0].OrderID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return cancelDoneMsg{err: api.CancelOrder(ctx, symbol, orderID)}
	}
}

func parseInput(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case pushEventMsg:
		m.ctrl.HandleEvent(msg.evt)
		return m, m.listenPush()

	case pushClosedMsg:
		return m, nil

	case tickMsg:
		m.ctrl.RequestUpdates()
		return m, tickCmd()

	case initialDataMsg:
		m.ctrl.ApplyInitialData(msg.account, msg.history, msg.err)
		return m, nil

	case chartDataMsg:
		if msg.err != nil {
			m.ctrl.ChartReloadFailed(msg.err)
			return m, nil
		}
		if msg.symbol == m.ctrl.Symbol() && msg.interval == m.ctrl.Interval() {
			m.ctrl.ApplyChartData(msg.candles)
		}
		return m, nil

	case orderPlacedMsg:
		if msg.err != nil {
			// Local and REST failures flow through the same path a pushed
			// failure would.
			m.ctrl.HandleEvent(push.MustEvent(push.EventOrderResponse, push.OrderResponse{
				Success: false,
				Error:   msg.err.Error(),
			}))
		}
		return m, nil

	case cancelDoneMsg:
		if msg.err != nil {
			m.ctrl.Notify(dashboard.NoticeError, "Cancel failed: "+msg.err.Error())
		} else {
			m.ctrl.Notify(dashboard.NoticeSuccess, "Order cancelled")
			m.ctrl.RequestOrdersUpdate()
		}
		return m, nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While an input is focused, most keys type into it.
	if m.focused != focusNone {
		switch msg.String() {
		case "esc":
			m.setFocus(focusNone)
			return m, nil
		case "tab":
			m.setFocus(m.nextFocus())
			return m, nil
		case "enter":
			m.setFocus(focusNone)
			return m, m.submitOrder()
		}
		var cmd tea.Cmd
		switch m.focused {
		case focusQty:
			m.qtyInput, cmd = m.qtyInput.Update(msg)
		case focusPrice:
			m.priceInput, cmd = m.priceInput.Update(msg)
		case focusStop:
			m.stopInput, cmd = m.stopInput.Update(msg)
		}
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.cancel()
		return m, tea.Quit

	case "1", "2", "3", "4", "5", "6":
		idx := int(msg.String()[0] - '1')
		if idx < len(domain.Intervals) && m.ctrl.SetInterval(domain.Intervals[idx]) {
			return m, m.fetchChartData()
		}
		return m, nil

	case "s":
		next := m.nextSymbol()
		if m.ctrl.SetSymbol(next) {
			return m, m.fetchChartData()
		}
		return m, nil

	case "b":
		m.ctrl.SetSide(domain.SideBuy)
		return m, nil

	case "v":
		m.ctrl.SetSide(domain.SideSell)
		return m, nil

	case "t":
		m.ctrl.CycleOrderType()
		return m, nil

	case "p":
		if price, ok := m.ctrl.PriceFill(); ok {
			m.priceInput.SetValue(price)
		}
		return m, nil

	case "f":
		m.filterIdx = (m.filterIdx + 1) % len(m.historyFilters)
		m.ctrl.SetHistoryFilter(m.historyFilters[m.filterIdx])
		return m, nil

	case "r":
		m.ctrl.RequestUpdates()
		return m, m.fetchChartData()

	case "tab":
		m.setFocus(focusQty)
		return m, nil

	case "enter":
		return m, m.submitOrder()

	case "c":
		return m, m.cancelFirstOpenOrder()
	}

	return m, nil
}

func (m *model) setFocus(f focus) {
	m.focused = f
	m.qtyInput.Blur()
	m.priceInput.Blur()
	m.stopInput.Blur()
	switch f {
	case focusQty:
		m.qtyInput.Focus()
	case focusPrice:
		m.priceInput.Focus()
	case focusStop:
		m.stopInput.Focus()
	}
}

func (m *model) nextFocus() focus {
	withStop := m.ctrl.OrderType() == domain.OrderTypeStopLimit
	switch m.focused {
	case focusQty:
		return focusPrice
	case focusPrice:
		if withStop {
			return focusStop
		}
		return focusQty
	case focusStop:
		return focusQty
	default:
		return focusQty
	}
}

func (m *model) nextSymbol() string {
	cur := m.ctrl.Symbol()
	for i, s := range m.symbols {
		if s == cur {
			return m.symbols[(i+1)%len(m.symbols)]
		}
	}
	if len(m.symbols) > 0 {
		return m.symbols[0]
	}
	return cur
}

// wsURL derives the push endpoint from the server base URL.
func wsURL(serverURL string) string {
	u := strings.TrimSuffix(serverURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/ws"
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	logPath := cfg.Logging.File
	if logPath == "" {
		logPath = fmt.Sprintf("/tmp/tradedash-%s.log", time.Now().Format("2006-01-02"))
	}
	logger, logFile, err := util.NewFileLogger(logPath, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The push channel opens first so no early event is missed, then the
	// controller binds its handlers to the event stream, the chart and
	// snapshots load, and finally the periodic refresh is armed in Init.
	pushClient := push.NewClient(wsURL(cfg.Dashboard.ServerURL), logger)
	go func() {
		if err := pushClient.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("push channel closed", "error", err)
		}
	}()

	ctrl := dashboard.New(logger, pushClient, time.Local)
	ctrl.SetSymbol(cfg.Dashboard.DefaultSymbol)
	ctrl.SetInterval(cfg.Dashboard.DefaultInterval)

	api := dashclient.NewClient(cfg.Dashboard.ServerURL)

	p := tea.NewProgram(
		initialModel(ctrl, api, pushClient.Events(), cancel, cfg.Dashboard.Symbols, logger),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
