package station

// Callbacks receives upward notifications from a Session.
//
// Callbacks are invoked after the session lock is released, in the order the
// underlying events happened, from the goroutine that delivered the event or
// made the call. Implementations may call back into the Session.
type Callbacks interface {
	DeviceConnected()
	DeviceDisconnected()
	DiscoveryFinished(ok bool)
	RecordFetched(rec WeatherRecord)
	RecordCountUpdated(count uint32)
	DateTimeSetComplete()
	FetchFinished(total int)
	OperationFailed(id CharacteristicID, err error)
}

// CallbackFuncs adapts optional functions to Callbacks. Nil fields are skipped.
type CallbackFuncs struct {
	OnDeviceConnected     func()
	OnDeviceDisconnected  func()
	OnDiscoveryFinished   func(ok bool)
	OnRecordFetched       func(rec WeatherRecord)
	OnRecordCountUpdated  func(count uint32)
	OnDateTimeSetComplete func()
	OnFetchFinished       func(total int)
	OnOperationFailed     func(id CharacteristicID, err error)
}

func (f CallbackFuncs) DeviceConnected() {
	if f.OnDeviceConnected != nil {
		f.OnDeviceConnected()
	}
}

func (f CallbackFuncs) DeviceDisconnected() {
	if f.OnDeviceDisconnected != nil {
		f.OnDeviceDisconnected()
	}
}

func (f CallbackFuncs) DiscoveryFinished(ok bool) {
	if f.OnDiscoveryFinished != nil {
		f.OnDiscoveryFinished(ok)
	}
}

func (f CallbackFuncs) RecordFetched(rec WeatherRecord) {
	if f.OnRecordFetched != nil {
		f.OnRecordFetched(rec)
	}
}

func (f CallbackFuncs) RecordCountUpdated(count uint32) {
	if f.OnRecordCountUpdated != nil {
		f.OnRecordCountUpdated(count)
	}
}

func (f CallbackFuncs) DateTimeSetComplete() {
	if f.OnDateTimeSetComplete != nil {
		f.OnDateTimeSetComplete()
	}
}

func (f CallbackFuncs) FetchFinished(total int) {
	if f.OnFetchFinished != nil {
		f.OnFetchFinished(total)
	}
}

func (f CallbackFuncs) OperationFailed(id CharacteristicID, err error) {
	if f.OnOperationFailed != nil {
		f.OnOperationFailed(id, err)
	}
}
