package main

import (
	"fmt"

	owasm "github.com/ODIN-PROTOCOL/owasm-go"
)

// fixtureEnv is a YAML-configurable owasm.Env implementation for exercising
// a script from the command line, mirroring the shape of the reference
// implementation's MockEnv test fixture
// (original_source/packages/vm/src/imports.rs).
type fixtureEnv struct {
	SpanSize     int64             `yaml:"span_size"`
	Calldata     []byte            `yaml:"calldata"`
	AskCount     int64             `yaml:"ask_count"`
	MinCount     int64             `yaml:"min_count"`
	PrepareTime  int64             `yaml:"prepare_time"`
	ExecuteTime  int64             `yaml:"execute_time"`
	AnsCount     int64             `yaml:"ans_count"`
	IsPrepare    bool              `yaml:"-"`
	ExternalData map[string][]byte `yaml:"external_data"` // keyed by "eid:vid"

	returnData    []byte
	askedExternal []askedExternalData
}

type askedExternalData struct {
	EID, DID int64
	Data     []byte
}

func (f *fixtureEnv) GetSpanSize() int64 { return f.SpanSize }

func (f *fixtureEnv) GetCalldata() ([]byte, error) { return f.Calldata, nil }

func (f *fixtureEnv) SetReturnData(data []byte) error {
	f.returnData = append([]byte(nil), data...)
	return nil
}

func (f *fixtureEnv) GetAskCount() int64 { return f.AskCount }

func (f *fixtureEnv) GetMinCount() int64 { return f.MinCount }

func (f *fixtureEnv) GetPrepareTime() int64 { return f.PrepareTime }

func (f *fixtureEnv) GetExecuteTime() (int64, error) {
	if f.IsPrepare {
		return 0, owasm.ErrWrongPeriodAction
	}
	return f.ExecuteTime, nil
}

func (f *fixtureEnv) GetAnsCount() (int64, error) {
	if f.IsPrepare {
		return 0, owasm.ErrWrongPeriodAction
	}
	return f.AnsCount, nil
}

func (f *fixtureEnv) AskExternalData(eid, did int64, data []byte) error {
	f.askedExternal = append(f.askedExternal, askedExternalData{EID: eid, DID: did, Data: data})
	return nil
}

func (f *fixtureEnv) GetExternalDataStatus(eid, vid int64) (int64, error) {
	key := fmt.Sprintf("%d:%d", eid, vid)
	if _, ok := f.ExternalData[key]; ok {
		return 1, nil
	}
	return 0, owasm.ErrUnavailableData
}

func (f *fixtureEnv) GetExternalData(eid, vid int64) ([]byte, error) {
	key := fmt.Sprintf("%d:%d", eid, vid)
	data, ok := f.ExternalData[key]
	if !ok {
		return nil, owasm.ErrUnavailableData
	}
	return data, nil
}
