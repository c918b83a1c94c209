package registry

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/holiman/uint256"
)

// Handle length bounds.
const (
	MinHandleLength = 3
	MaxHandleLength = 31
)

// Parameters of the expired handle auction. The premium halves every day
// and starts at 100 million dollars worth of the payment asset.
const (
	PremiumHalvingPeriod = 86_400
	PremiumPrecision     = 1_000_000_000_000_000_000
	premiumStartDollars  = 100_000_000
	premiumEndNumerator  = 372_529_029_846_191_406
)

// PremiumBits[i] is precision * 2^(-2^i / 65536). The premium is multiplied
// by it when bit i of the elapsed fraction of a halving period is set.
var PremiumBits = []uint64{
	999989423469314432,
	999978847050491904,
	999957694548431104,
	999915390886613504,
	999830788931929088,
	999661606496243712,
	999323327502650752,
	998647112890970240,
	997296056085470080,
	994599423483633152,
	989228013193975424,
	978572062087700096,
	957603280698573696,
	917004043204671232,
	840896415253714560,
	707106781186547584,
}

// Pricing is a pricing puzzle: it quotes a handle registration as the
// price and the time it adds to the expiration.
type Pricing interface {
	ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error)
	PuzzleHash(lib puzzles.Library) clvm.Bytes32
	Quote(sol XchandlesPricingSolution) (price uint64, delta uint64, err error)
}

// ValidateHandle checks the handle is 3 to 31 characters of lowercase
// letters and digits.
func ValidateHandle(handle string) error {
	if len(handle) < MinHandleLength || len(handle) > MaxHandleLength {
		return fmt.Errorf("handle[%s] length[%d]: %w", handle, len(handle), ErrBadHandle)
	}

	for _, c := range handle {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return fmt.Errorf("handle[%s] char[%c]: %w", handle, c, ErrBadHandle)
		}
	}

	return nil
}

// =============================================================================

// FactorPricing prices a handle by its length. Short handles cost more and
// handles with a digit cost half.
type FactorPricing struct {
	BasePrice          uint64
	RegistrationPeriod uint64
}

// ConstructPuzzle builds the pricing puzzle.
func (p FactorPricing) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	return ctx.Curry(puzzles.XchandlesFactorPricing, ctx.NewUint64(p.BasePrice), ctx.NewUint64(p.RegistrationPeriod))
}

// PuzzleHash implements the Pricing interface.
func (p FactorPricing) PuzzleHash(lib puzzles.Library) clvm.Bytes32 {
	return clvm.CurryTreeHash(lib.MustHash(puzzles.XchandlesFactorPricing),
		clvm.TreeHashAtom(clvm.EncodeUint64(p.BasePrice)),
		clvm.TreeHashAtom(clvm.EncodeUint64(p.RegistrationPeriod)),
	)
}

// Price returns the price of registering the handle for the number of
// periods.
func (p FactorPricing) Price(handle string, numPeriods uint64) (uint64, error) {
	if err := ValidateHandle(handle); err != nil {
		return 0, err
	}

	if numPeriods == 0 {
		return 0, fmt.Errorf("num periods[0]: %w", ErrBadHandle)
	}

	var factor uint64
	switch len(handle) {
	case 3:
		factor = 128
	case 4:
		factor = 64
	case 5:
		factor = 16
	default:
		factor = 2
	}

	price := new(uint256.Int).Mul(uint256.NewInt(p.BasePrice), uint256.NewInt(factor))
	if strings.ContainsAny(handle, "0123456789") {
		price.Rsh(price, 1)
	}

	price, overflow := price.MulOverflow(price, uint256.NewInt(numPeriods))
	if overflow || !price.IsUint64() {
		return 0, fmt.Errorf("handle[%s] periods[%d]: %w", handle, numPeriods, clvm.ErrTooLarge)
	}

	return price.Uint64(), nil
}

// Quote implements the Pricing interface.
func (p FactorPricing) Quote(sol XchandlesPricingSolution) (uint64, uint64, error) {
	price, err := p.Price(sol.Handle, sol.NumPeriods)
	if err != nil {
		return 0, 0, err
	}

	delta, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(p.RegistrationPeriod), uint256.NewInt(sol.NumPeriods))
	if overflow || !delta.IsUint64() {
		return 0, 0, fmt.Errorf("registration periods[%d]: %w", sol.NumPeriods, clvm.ErrTooLarge)
	}

	return price, delta.Uint64(), nil
}

// =============================================================================

// ExponentialPremium prices an expired handle: the factor price plus a
// premium that decays exponentially from the expiration.
type ExponentialPremium struct {
	Base          FactorPricing
	HalvingPeriod uint64
	StartPremium  uint64
	EndValue      uint64
	Precision     uint64
	Bits          []uint64
}

// NewExponentialPremium constructs the premium pricing for a payment asset
// where scaleFactor units are worth one dollar.
func NewExponentialPremium(base FactorPricing, scaleFactor uint64) ExponentialPremium {
	end := new(uint256.Int).Mul(uint256.NewInt(premiumEndNumerator), uint256.NewInt(scaleFactor))
	end.Div(end, uint256.NewInt(PremiumPrecision))

	return ExponentialPremium{
		Base:          base,
		HalvingPeriod: PremiumHalvingPeriod,
		StartPremium:  premiumStartDollars * scaleFactor,
		EndValue:      end.Uint64(),
		Precision:     PremiumPrecision,
		Bits:          PremiumBits,
	}
}

// ConstructPuzzle builds the pricing puzzle around the factor pricing
// puzzle.
func (p ExponentialPremium) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	base, err := p.Base.ConstructPuzzle(ctx)
	if err != nil {
		return clvm.Nil, err
	}

	bits := make([]clvm.NodePtr, len(p.Bits))
	for i, b := range p.Bits {
		bits[i] = ctx.NewUint64(b)
	}

	return ctx.Curry(puzzles.XchandlesExponentialPremium,
		base,
		ctx.NewUint64(p.HalvingPeriod),
		ctx.NewUint64(p.StartPremium),
		ctx.NewUint64(p.EndValue),
		ctx.NewUint64(p.Precision),
		ctx.List(bits...),
	)
}

// PuzzleHash implements the Pricing interface.
func (p ExponentialPremium) PuzzleHash(lib puzzles.Library) clvm.Bytes32 {
	a := clvm.NewAllocator()
	bits := make([]clvm.NodePtr, len(p.Bits))
	for i, b := range p.Bits {
		bits[i] = a.NewUint64(b)
	}

	return clvm.CurryTreeHash(lib.MustHash(puzzles.XchandlesExponentialPremium),
		p.Base.PuzzleHash(lib),
		clvm.TreeHashAtom(clvm.EncodeUint64(p.HalvingPeriod)),
		clvm.TreeHashAtom(clvm.EncodeUint64(p.StartPremium)),
		clvm.TreeHashAtom(clvm.EncodeUint64(p.EndValue)),
		clvm.TreeHashAtom(clvm.EncodeUint64(p.Precision)),
		a.TreeHash(a.List(bits...)),
	)
}

// Premium returns the auction premium of a handle that expired at the
// expiration and is bought at the buy time.
func (p ExponentialPremium) Premium(expiration uint64, buyTime uint64) (uint64, error) {
	if buyTime < expiration {
		return 0, fmt.Errorf("buy time[%d] expiration[%d]: %w", buyTime, expiration, ErrNotExpired)
	}

	elapsed := buyTime - expiration
	halvings := elapsed / p.HalvingPeriod
	if halvings >= 64 {
		return 0, nil
	}

	premium := new(uint256.Int).Rsh(uint256.NewInt(p.StartPremium), uint(halvings))

	fraction := (elapsed % p.HalvingPeriod) * 65536 / p.HalvingPeriod
	precision := uint256.NewInt(p.Precision)

	for i, b := range p.Bits {
		if fraction&(1<<uint(i)) == 0 {
			continue
		}
		premium.Mul(premium, uint256.NewInt(b))
		premium.Div(premium, precision)
	}

	end := uint256.NewInt(p.EndValue)
	if premium.Lt(end) {
		return 0, nil
	}

	return premium.Sub(premium, end).Uint64(), nil
}

// Quote implements the Pricing interface.
func (p ExponentialPremium) Quote(sol XchandlesPricingSolution) (uint64, uint64, error) {
	price, delta, err := p.Base.Quote(sol)
	if err != nil {
		return 0, 0, err
	}

	premium, err := p.Premium(sol.CurrentExpiration, sol.BuyTime)
	if err != nil {
		return 0, 0, err
	}

	total, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(price), uint256.NewInt(premium))
	if overflow || !total.IsUint64() {
		return 0, 0, fmt.Errorf("price[%d] premium[%d]: %w", price, premium, clvm.ErrTooLarge)
	}

	return total.Uint64(), delta, nil
}
