// Package followup drives the staged quote nurture sequence.
//
// Quotes track a followup_stage counter starting at 0. The scanner finds
// quotes whose age crossed the next stage threshold (1 day, 3 days, 7 days),
// sends the matching nurture email, and advances the counter with a guarded
// update so concurrent scanner runs cannot double-send a stage. Quotes that
// were accepted or declined are excluded from the sequence.
//
// The scanner is batch-oriented: the scheduler binary invokes Run on a cron
// cadence or once via a flag.
package followup
