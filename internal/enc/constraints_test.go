package enc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testClassInt RegClass = iota
	testClassFloat
)

// testClassOf puts registers 0..15 in the int class and the rest in the
// float class.
func testClassOf(r RealReg) RegClass {
	if r < 16 {
		return testClassInt
	}
	return testClassFloat
}

func TestConstraintsSatisfied(t *testing.T) {
	rc := &RecipeConstraints{
		Ins: []OperandConstraint{
			{Kind: ConstraintReg, Class: testClassInt},
			{Kind: ConstraintFixedReg, Class: testClassInt, Reg: 1},
		},
		Outs: []OperandConstraint{
			{Kind: ConstraintTied, Tied: 0},
		},
	}

	ok := Assignment{Ins: []RealReg{3, 1}, Outs: []RealReg{3}}
	require.NoError(t, rc.Satisfied(ok, testClassOf))

	for _, tc := range []struct {
		name string
		a    Assignment
	}{
		{"wrong input count", Assignment{Ins: []RealReg{3}, Outs: []RealReg{3}}},
		{"wrong output count", Assignment{Ins: []RealReg{3, 1}}},
		{"wrong class", Assignment{Ins: []RealReg{20, 1}, Outs: []RealReg{20}}},
		{"missing register", Assignment{Ins: []RealReg{RealRegInvalid, 1}, Outs: []RealReg{3}}},
		{"wrong fixed register", Assignment{Ins: []RealReg{3, 2}, Outs: []RealReg{3}}},
		{"tie broken", Assignment{Ins: []RealReg{3, 1}, Outs: []RealReg{4}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := rc.Satisfied(tc.a, testClassOf)
			require.ErrorIs(t, err, ErrConstraint)
		})
	}
}

func TestConstraintsStack(t *testing.T) {
	rc := &RecipeConstraints{
		Ins: []OperandConstraint{{Kind: ConstraintStack, Class: testClassInt}},
	}
	require.NoError(t, rc.Satisfied(Assignment{Ins: []RealReg{RealRegInvalid}}, testClassOf))
	err := rc.Satisfied(Assignment{Ins: []RealReg{3}}, testClassOf)
	require.ErrorIs(t, err, ErrConstraint)
}
