// Package timeexpr parses and resolves the relative time expressions used
// in camera schedules.
//
// An expression names an optional solar anchor and an optional signed
// offset:
//
//	sunset-30m     thirty minutes before the next sunset
//	sunrise+1h     an hour after the next sunrise
//	noon           the next solar noon
//	+8h            eight hours after sunrise (today's if still ahead, else tomorrow's)
//
// # Grammar
//
// Input is consumed left to right as a sequence of tokens:
//
//	"+"                  no effect
//	"-"                  negates the magnitude
//	digits               multiplies the magnitude (at most 9 digits per token)
//	sunrise|noon|sunset  selects the anchor; a later keyword replaces an earlier one
//	h|m                  selects the unit; only valid as the entire remainder
//
// The magnitude starts at 1 and every sign and number composes
// multiplicatively, so "5-3" is -15 and "--2h" is +2h. Keywords and units
// are case-insensitive. Anything else stops parsing: the tokens read so
// far still form a usable Expression, returned together with a
// *SyntaxError. An expression without a unit has a zero offset.
package timeexpr
