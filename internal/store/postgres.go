package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Alturino/hiicart/internal/cart"
	commonErrors "github.com/Alturino/hiicart/internal/errors"
	"github.com/Alturino/hiicart/internal/log"
	"github.com/Alturino/hiicart/internal/otel"
)

// PostgresStore persists cart aggregates in postgres. WithCartLock takes a
// row lock on the cart inside a transaction, which is the per-cart
// serialization boundary concurrent notifications rely on.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type querier interface {
	Exec(c context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(c context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(c context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) FindCartByID(c context.Context, id uuid.UUID) (*cart.Cart, error) {
	c, span := otel.Tracer.Start(c, "PostgresStore FindCartByID")
	defer span.End()

	return s.findCart(c, s.pool, id, false)
}

func (s *PostgresStore) SaveCart(c context.Context, crt *cart.Cart) error {
	c, span := otel.Tracer.Start(c, "PostgresStore SaveCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "PostgresStore SaveCart").
		Str(log.KeyCartID, crt.ID.String()).
		Logger()

	tx, err := s.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		err = fmt.Errorf("failed initializing transaction with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	defer func() {
		if rollbackErr := tx.Rollback(c); rollbackErr != nil &&
			!errors.Is(rollbackErr, pgx.ErrTxClosed) {
			logger.Error().Err(rollbackErr).Msg("failed rolling back transaction")
		}
	}()

	if err = s.saveCart(c, tx, crt); err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	if err = tx.Commit(c); err != nil {
		err = fmt.Errorf("failed committing transaction with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	return nil
}

func (s *PostgresStore) WithCartLock(
	c context.Context,
	id uuid.UUID,
	fn func(c context.Context, crt *cart.Cart) error,
) error {
	c, span := otel.Tracer.Start(c, "PostgresStore WithCartLock")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "PostgresStore WithCartLock").
		Str(log.KeyCartID, id.String()).
		Logger()

	tx, err := s.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		err = fmt.Errorf("failed initializing transaction with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	defer func() {
		if rollbackErr := tx.Rollback(c); rollbackErr != nil &&
			!errors.Is(rollbackErr, pgx.ErrTxClosed) {
			logger.Error().Err(rollbackErr).Msg("failed rolling back transaction")
		}
	}()

	crt, err := s.findCart(c, tx, id, true)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	if err = fn(c, crt); err != nil {
		return err
	}

	if err = s.saveCart(c, tx, crt); err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	if err = tx.Commit(c); err != nil {
		err = fmt.Errorf("failed committing transaction with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	return nil
}

func (s *PostgresStore) ListCartIDsByState(
	c context.Context,
	states ...cart.State,
) ([]uuid.UUID, error) {
	c, span := otel.Tracer.Start(c, "PostgresStore ListCartIDsByState")
	defer span.End()

	stateArgs := make([]string, 0, len(states))
	for _, state := range states {
		stateArgs = append(stateArgs, string(state))
	}
	rows, err := s.pool.Query(
		c,
		`SELECT id FROM carts WHERE state = ANY($1)`,
		stateArgs,
	)
	if err != nil {
		err = fmt.Errorf("failed listing carts by state with error=%w", err)
		commonErrors.HandleError(err, span)
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			err = fmt.Errorf("failed scanning cart id with error=%w", err)
			commonErrors.HandleError(err, span)
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) findCart(
	c context.Context,
	q querier,
	id uuid.UUID,
	forUpdate bool,
) (*cart.Cart, error) {
	query := `SELECT id, state, gateway, sub_total, total, discount, tax, shipping_cost,
		bill_to, ship_to, success_url, failure_url, response_code, response_text,
		created_at, updated_at
	FROM carts WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	crt := cart.Cart{}
	var (
		subTotal, total, discount, tax, shippingCost pgtype.Numeric
		billTo, shipTo                               []byte
		responseCode                                 *int
		responseText                                 *string
	)
	err := q.QueryRow(c, query, id).Scan(
		&crt.ID, &crt.State, &crt.Gateway,
		&subTotal, &total, &discount, &tax, &shippingCost,
		&billTo, &shipTo, &crt.SuccessURL, &crt.FailureURL,
		&responseCode, &responseText,
		&crt.CreatedAt, &crt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", commonErrors.ErrUnknownCart, id)
		}
		return nil, fmt.Errorf("failed finding cart by id=%s with error=%w", id, err)
	}
	crt.SubTotal = decimalFromNumeric(subTotal)
	crt.Total = decimalFromNumeric(total)
	crt.Discount = decimalFromNumeric(discount)
	crt.Tax = decimalFromNumeric(tax)
	crt.ShippingCost = decimalFromNumeric(shippingCost)
	if err = json.Unmarshal(billTo, &crt.BillTo); err != nil {
		return nil, fmt.Errorf("failed unmarshaling bill_to with error=%w", err)
	}
	if err = json.Unmarshal(shipTo, &crt.ShipTo); err != nil {
		return nil, fmt.Errorf("failed unmarshaling ship_to with error=%w", err)
	}
	if responseCode != nil && responseText != nil {
		crt.LastResponse = &cart.PaymentResponse{
			ResponseCode: *responseCode,
			ResponseText: *responseText,
		}
	}

	if crt.LineItems, err = s.findLineItems(c, q, id); err != nil {
		return nil, err
	}
	if crt.RecurringItems, err = s.findRecurringLineItems(c, q, id); err != nil {
		return nil, err
	}
	if crt.Payments, err = s.findPayments(c, q, id); err != nil {
		return nil, err
	}
	return &crt, nil
}

func (s *PostgresStore) findLineItems(
	c context.Context,
	q querier,
	cartID uuid.UUID,
) ([]*cart.LineItem, error) {
	rows, err := q.Query(
		c,
		`SELECT id, cart_id, sku, name, description, quantity, unit_price, discount, ordering
		FROM line_items WHERE cart_id = $1 ORDER BY ordering`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed finding line items with error=%w", err)
	}
	defer rows.Close()

	items := []*cart.LineItem{}
	for rows.Next() {
		li := cart.LineItem{}
		var unitPrice, discount pgtype.Numeric
		err := rows.Scan(
			&li.ID, &li.CartID, &li.SKU, &li.Name, &li.Description,
			&li.Quantity, &unitPrice, &discount, &li.Ordering,
		)
		if err != nil {
			return nil, fmt.Errorf("failed scanning line item with error=%w", err)
		}
		li.UnitPrice = decimalFromNumeric(unitPrice)
		li.Discount = decimalFromNumeric(discount)
		items = append(items, &li)
	}
	return items, rows.Err()
}

func (s *PostgresStore) findRecurringLineItems(
	c context.Context,
	q querier,
	cartID uuid.UUID,
) ([]*cart.RecurringLineItem, error) {
	rows, err := q.Query(
		c,
		`SELECT id, cart_id, sku, name, description, quantity, discount,
			duration, duration_unit, is_active, payment_token,
			recurring_price, recurring_shipping, recurring_times, recurring_start,
			trial, trial_price, trial_length, trial_times, ordering
		FROM recurring_line_items WHERE cart_id = $1 ORDER BY ordering`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed finding recurring line items with error=%w", err)
	}
	defer rows.Close()

	items := []*cart.RecurringLineItem{}
	for rows.Next() {
		li := cart.RecurringLineItem{}
		var discount, recurringPrice, recurringShipping, trialPrice pgtype.Numeric
		var recurringStart *time.Time
		err := rows.Scan(
			&li.ID, &li.CartID, &li.SKU, &li.Name, &li.Description,
			&li.Quantity, &discount,
			&li.Duration, &li.DurationUnit, &li.IsActive, &li.PaymentToken,
			&recurringPrice, &recurringShipping, &li.RecurringTimes, &recurringStart,
			&li.Trial, &trialPrice, &li.TrialLength, &li.TrialTimes, &li.Ordering,
		)
		if err != nil {
			return nil, fmt.Errorf("failed scanning recurring line item with error=%w", err)
		}
		li.Discount = decimalFromNumeric(discount)
		li.RecurringPrice = decimalFromNumeric(recurringPrice)
		li.RecurringShipping = decimalFromNumeric(recurringShipping)
		li.TrialPrice = decimalFromNumeric(trialPrice)
		if recurringStart != nil {
			li.RecurringStart = *recurringStart
		}
		items = append(items, &li)
	}
	return items, rows.Err()
}

func (s *PostgresStore) findPayments(
	c context.Context,
	q querier,
	cartID uuid.UUID,
) ([]*cart.Payment, error) {
	rows, err := q.Query(
		c,
		`SELECT id, cart_id, amount, state, gateway, transaction_id, notes, created_at, updated_at
		FROM payments WHERE cart_id = $1 ORDER BY created_at`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed finding payments with error=%w", err)
	}
	defer rows.Close()

	payments := []*cart.Payment{}
	for rows.Next() {
		p := cart.Payment{}
		var amount pgtype.Numeric
		err := rows.Scan(
			&p.ID, &p.CartID, &amount, &p.State, &p.Gateway,
			&p.TransactionID, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed scanning payment with error=%w", err)
		}
		p.Amount = decimalFromNumeric(amount)
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

func (s *PostgresStore) saveCart(c context.Context, q querier, crt *cart.Cart) error {
	crt.Recalc()

	billTo, err := json.Marshal(crt.BillTo)
	if err != nil {
		return fmt.Errorf("failed marshaling bill_to with error=%w", err)
	}
	shipTo, err := json.Marshal(crt.ShipTo)
	if err != nil {
		return fmt.Errorf("failed marshaling ship_to with error=%w", err)
	}
	var responseCode *int
	var responseText *string
	if crt.LastResponse != nil {
		responseCode = &crt.LastResponse.ResponseCode
		responseText = &crt.LastResponse.ResponseText
	}

	_, err = q.Exec(
		c,
		`INSERT INTO carts (id, state, gateway, sub_total, total, discount, tax, shipping_cost,
			bill_to, ship_to, success_url, failure_url, response_code, response_text,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			gateway = EXCLUDED.gateway,
			sub_total = EXCLUDED.sub_total,
			total = EXCLUDED.total,
			discount = EXCLUDED.discount,
			tax = EXCLUDED.tax,
			shipping_cost = EXCLUDED.shipping_cost,
			bill_to = EXCLUDED.bill_to,
			ship_to = EXCLUDED.ship_to,
			success_url = EXCLUDED.success_url,
			failure_url = EXCLUDED.failure_url,
			response_code = EXCLUDED.response_code,
			response_text = EXCLUDED.response_text,
			updated_at = EXCLUDED.updated_at`,
		crt.ID, crt.State, crt.Gateway,
		numericFromDecimal(crt.SubTotal), numericFromDecimal(crt.Total),
		numericFromDecimal(crt.Discount), numericFromDecimal(crt.Tax),
		numericFromDecimal(crt.ShippingCost),
		billTo, shipTo, crt.SuccessURL, crt.FailureURL,
		responseCode, responseText, crt.CreatedAt, crt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed upserting cart with error=%w", err)
	}

	for _, li := range crt.LineItems {
		_, err = q.Exec(
			c,
			`INSERT INTO line_items (id, cart_id, sku, name, description, quantity,
				unit_price, discount, ordering)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				sku = EXCLUDED.sku,
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				quantity = EXCLUDED.quantity,
				unit_price = EXCLUDED.unit_price,
				discount = EXCLUDED.discount,
				ordering = EXCLUDED.ordering`,
			li.ID, li.CartID, li.SKU, li.Name, li.Description, li.Quantity,
			numericFromDecimal(li.UnitPrice), numericFromDecimal(li.Discount), li.Ordering,
		)
		if err != nil {
			return fmt.Errorf("failed upserting line item with error=%w", err)
		}
	}

	for _, li := range crt.RecurringItems {
		var recurringStart *time.Time
		if !li.RecurringStart.IsZero() {
			recurringStart = &li.RecurringStart
		}
		_, err = q.Exec(
			c,
			`INSERT INTO recurring_line_items (id, cart_id, sku, name, description, quantity,
				discount, duration, duration_unit, is_active, payment_token,
				recurring_price, recurring_shipping, recurring_times, recurring_start,
				trial, trial_price, trial_length, trial_times, ordering)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
				$12, $13, $14, $15, $16, $17, $18, $19, $20)
			ON CONFLICT (id) DO UPDATE SET
				is_active = EXCLUDED.is_active,
				payment_token = EXCLUDED.payment_token,
				recurring_price = EXCLUDED.recurring_price,
				recurring_shipping = EXCLUDED.recurring_shipping,
				recurring_times = EXCLUDED.recurring_times,
				recurring_start = EXCLUDED.recurring_start,
				trial = EXCLUDED.trial,
				trial_price = EXCLUDED.trial_price,
				trial_length = EXCLUDED.trial_length,
				trial_times = EXCLUDED.trial_times,
				ordering = EXCLUDED.ordering`,
			li.ID, li.CartID, li.SKU, li.Name, li.Description, li.Quantity,
			numericFromDecimal(li.Discount), li.Duration, li.DurationUnit,
			li.IsActive, li.PaymentToken,
			numericFromDecimal(li.RecurringPrice), numericFromDecimal(li.RecurringShipping),
			li.RecurringTimes, recurringStart,
			li.Trial, numericFromDecimal(li.TrialPrice), li.TrialLength, li.TrialTimes,
			li.Ordering,
		)
		if err != nil {
			return fmt.Errorf("failed upserting recurring line item with error=%w", err)
		}
	}

	for _, p := range crt.Payments {
		_, err = q.Exec(
			c,
			`INSERT INTO payments (id, cart_id, amount, state, gateway, transaction_id,
				notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				amount = EXCLUDED.amount,
				state = EXCLUDED.state,
				notes = EXCLUDED.notes,
				updated_at = EXCLUDED.updated_at`,
			p.ID, p.CartID, numericFromDecimal(p.Amount), p.State, p.Gateway,
			p.TransactionID, p.Notes, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed upserting payment with error=%w", err)
		}
	}
	return nil
}

func numericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:              d.Coefficient(),
		Exp:              d.Exponent(),
		InfinityModifier: pgtype.Finite,
		Valid:            true,
	}
}

func decimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
