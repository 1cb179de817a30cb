package devicelog

// Readers builds phase readers over the configured device sources. A nil
// source reads as an empty log.
type Readers struct {
	Calls Source[CallEvent]
	SMS   Source[SMSEvent]
	MMS   Source[MMSEvent]
	Deps  Deps
}

// CallLog returns a new call log reader.
func (r *Readers) CallLog(refresh bool) Reader {
	calls := r.Calls
	if calls == nil {
		calls = &SliceSource[CallEvent]{}
	}
	return NewCallLogReader(calls, r.Deps, refresh)
}

// MessageLog returns a new message log reader.
func (r *Readers) MessageLog(refresh bool) Reader {
	sms := r.SMS
	if sms == nil {
		sms = &SliceSource[SMSEvent]{}
	}
	mms := r.MMS
	if mms == nil {
		mms = &SliceSource[MMSEvent]{}
	}
	return NewMessageLogReader(sms, mms, r.Deps, refresh)
}
