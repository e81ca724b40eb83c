package owasm

// mockEnv mirrors original_source/packages/vm/src/imports.rs's MockEnv test
// fixture: fixed span_size/ask_count/min_count/prepare_time, with an
// externalData table for ask/status/read round-tripping, and phase-gated
// execute-only fields.
type mockEnv struct {
	spanSize    int64
	calldata    []byte
	askCount    int64
	minCount    int64
	prepareTime int64
	isPrepare   bool
	executeTime int64
	ansCount    int64

	returnData []byte

	asked        []askedExternal
	externalData map[externalKey]externalAnswer
}

type askedExternal struct {
	EID, DID int64
	Data     []byte
}

type externalKey struct {
	EID, VID int64
}

type externalAnswer struct {
	Status int64
	Data   []byte
}

func newMockEnv() *mockEnv {
	return &mockEnv{
		spanSize:     300,
		calldata:     []byte{1},
		askCount:     10,
		minCount:     8,
		prepareTime:  100_000,
		executeTime:  100_000,
		ansCount:     8,
		externalData: map[externalKey]externalAnswer{},
	}
}

func (m *mockEnv) GetSpanSize() int64 { return m.spanSize }

func (m *mockEnv) GetCalldata() ([]byte, error) { return m.calldata, nil }

func (m *mockEnv) SetReturnData(data []byte) error {
	m.returnData = append([]byte{}, data...)
	return nil
}

func (m *mockEnv) GetAskCount() int64 { return m.askCount }

func (m *mockEnv) GetMinCount() int64 { return m.minCount }

func (m *mockEnv) GetPrepareTime() int64 { return m.prepareTime }

func (m *mockEnv) GetExecuteTime() (int64, error) {
	if m.isPrepare {
		return 0, ErrWrongPeriodAction
	}
	return m.executeTime, nil
}

func (m *mockEnv) GetAnsCount() (int64, error) {
	if m.isPrepare {
		return 0, ErrWrongPeriodAction
	}
	return m.ansCount, nil
}

func (m *mockEnv) AskExternalData(eid, did int64, data []byte) error {
	m.asked = append(m.asked, askedExternal{EID: eid, DID: did, Data: append([]byte{}, data...)})
	return nil
}

func (m *mockEnv) GetExternalDataStatus(eid, vid int64) (int64, error) {
	ans, ok := m.externalData[externalKey{EID: eid, VID: vid}]
	if !ok {
		return 0, ErrUnavailableData
	}
	return ans.Status, nil
}

func (m *mockEnv) GetExternalData(eid, vid int64) ([]byte, error) {
	ans, ok := m.externalData[externalKey{EID: eid, VID: vid}]
	if !ok {
		return nil, ErrUnavailableData
	}
	return ans.Data, nil
}
