package economy

// DefaultFeeBps is the protocol transfer fee: 250 bps = 2.5%.
const DefaultFeeBps = 250

// SplitFee computes the protocol fee on a gross transfer amount.
// fee = floor(amount * bps / 10000) and fee + net == amount, over the
// whole uint64 range: the quotient/remainder form cannot wrap where
// a plain amount*bps would.
func SplitFee(amount, bps uint64) (fee, net uint64) {
	fee = amount/10_000*bps + amount%10_000*bps/10_000
	return fee, amount - fee
}
