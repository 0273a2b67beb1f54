package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{999, 99900},
		{0.01, 1},
		{19.99, 1999},
		{0.1 + 0.2, 30},
		{123456.78, 12345678},
	}
	for _, tt := range tests {
		got, err := ToMinorUnits(tt.amount)
		require.NoError(t, err, "amount %v", tt.amount)
		assert.Equal(t, tt.want, got, "amount %v", tt.amount)
		assert.Equal(t, int64(math.Round(tt.amount*100)), got)
	}
}

func TestToMinorUnits_Rejects(t *testing.T) {
	for _, amount := range []float64{0, -1, -0.01, 0.001, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ToMinorUnits(amount)
		assert.ErrorIs(t, err, ErrInvalidRequest, "amount %v", amount)
	}
}

func TestCreateOrderReq_Cart(t *testing.T) {
	var req CreateOrderReq
	require.NoError(t, json.Unmarshal([]byte(`{"amount":999,"course_id":3,"course_ids":[5,7,5],"customer_email":" a@b.co "}`), &req))

	cart, err := req.Cart()
	require.NoError(t, err)
	assert.Equal(t, int64(99900), cart.AmountMinor)
	assert.Equal(t, []int64{5, 7}, cart.CourseIDs)
	assert.Equal(t, "a@b.co", cart.CustomerEmail)

	req = CreateOrderReq{}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":10,"course_id":"4"}`), &req))
	cart, err = req.Cart()
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, cart.CourseIDs)
}

func TestCreateOrderReq_CartInvalid(t *testing.T) {
	cases := []string{
		`{"course_ids":[1]}`,
		`{"amount":0,"course_ids":[1]}`,
		`{"amount":10}`,
		`{"amount":10,"course_ids":[]}`,
		`{"amount":10,"course_ids":[0]}`,
	}
	for _, body := range cases {
		var req CreateOrderReq
		require.NoError(t, json.Unmarshal([]byte(body), &req), body)
		_, err := req.Cart()
		assert.True(t, errors.Is(err, ErrInvalidRequest), body)
	}
}

func TestCourseIDList_Shapes(t *testing.T) {
	tests := map[string][]int64{
		`"[5,7]"`:    {5, 7},
		`[5,7]`:      {5, 7},
		`["5","7"]`:  {5, 7},
		`5`:          {5},
		`"5"`:        {5},
		`" [1, 2] "`: {1, 2},
		`null`:       nil,
		`""`:         nil,
	}
	for in, want := range tests {
		var got CourseIDList
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.Equal(t, want, []int64(got), in)
	}

	for _, in := range []string{`"abc"`, `[1.5]`, `{"a":1}`, `[[1,2]]`} {
		var got CourseIDList
		assert.Error(t, json.Unmarshal([]byte(in), &got), in)
	}
}

func TestSameCourses(t *testing.T) {
	assert.True(t, SameCourses([]int64{5, 7}, []int64{7, 5}))
	assert.True(t, SameCourses([]int64{5, 7}, []int64{7, 5, 5}))
	assert.False(t, SameCourses([]int64{5, 7}, []int64{5}))
	assert.False(t, SameCourses([]int64{5}, []int64{5, 9}))
}

func TestEncodeCourseIDs(t *testing.T) {
	assert.Equal(t, "[5,7]", EncodeCourseIDs([]int64{5, 7}))

	var back CourseIDList
	require.NoError(t, json.Unmarshal([]byte(`"`+EncodeCourseIDs([]int64{5, 7})+`"`), &back))
	assert.Equal(t, []int64{5, 7}, []int64(back))
}

func TestTxState_Transitions(t *testing.T) {
	path := []TxState{StateCreated, StateVerifying, StateVerified, StateProvisioned, StateFulfilled, StateNotified}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, path[i].CanTransition(path[i+1]), "%s -> %s", path[i], path[i+1])
	}
	assert.True(t, StateVerifying.CanTransition(StateRejected))
	assert.False(t, StateRejected.CanTransition(StateProvisioned))
	assert.False(t, StateVerifying.CanTransition(StateFulfilled))
	assert.True(t, StateNotified.Terminal())
	assert.True(t, StateRejected.Terminal())
	assert.False(t, StateFulfilled.Terminal())
}

func TestProvisioned_LogValueRedactsPassword(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	log.Info("provisioned", "account", Provisioned{AccountID: 9, IsNew: true, TempPassword: "s3cretPassw0"})

	assert.NotContains(t, buf.String(), "s3cretPassw0")
	assert.True(t, strings.Contains(buf.String(), `"account_id":9`))
}

func TestCoursePriceOrZero(t *testing.T) {
	price := 499.0
	assert.Equal(t, 499.0, Course{Price: &price}.PriceOrZero())
	assert.Equal(t, 0.0, Course{}.PriceOrZero())
}
