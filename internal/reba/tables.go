package reba

// Lookup tables from Hignett & McAtamney (2000). Indices are 1-based in the
// accessor functions below and 0-based in the arrays.

// tableA is indexed [trunk-1][neck-1][leg-1].
var tableA = [5][3][4]int{
	{{1, 2, 3, 4}, {1, 2, 3, 4}, {3, 3, 5, 6}},
	{{2, 3, 4, 5}, {3, 4, 5, 6}, {4, 5, 6, 7}},
	{{2, 4, 5, 6}, {4, 5, 6, 7}, {5, 6, 7, 8}},
	{{3, 5, 6, 7}, {5, 6, 7, 8}, {6, 7, 8, 9}},
	{{4, 6, 7, 8}, {6, 7, 8, 9}, {7, 8, 9, 9}},
}

// tableB is indexed [upperArm-1][forearm-1][wrist-1].
var tableB = [6][2][3]int{
	{{1, 2, 2}, {1, 2, 3}},
	{{1, 2, 3}, {2, 3, 4}},
	{{3, 4, 5}, {4, 5, 5}},
	{{4, 5, 5}, {5, 6, 7}},
	{{6, 7, 8}, {7, 8, 8}},
	{{7, 8, 8}, {8, 9, 9}},
}

// tableC is indexed [scoreA-1][scoreB-1].
var tableC = [12][12]int{
	{1, 1, 1, 2, 3, 3, 4, 5, 6, 7, 7, 7},
	{1, 2, 2, 3, 4, 4, 5, 6, 6, 7, 7, 8},
	{2, 3, 3, 3, 4, 5, 6, 7, 7, 8, 8, 8},
	{3, 4, 4, 4, 5, 6, 7, 8, 8, 9, 9, 9},
	{4, 4, 4, 5, 6, 7, 8, 8, 9, 9, 9, 9},
	{6, 6, 6, 7, 8, 8, 9, 9, 10, 10, 10, 10},
	{7, 7, 7, 8, 9, 9, 9, 10, 10, 11, 11, 11},
	{8, 8, 8, 9, 10, 10, 10, 10, 10, 11, 11, 11},
	{9, 9, 9, 10, 10, 10, 11, 11, 11, 12, 12, 12},
	{10, 10, 10, 11, 11, 11, 11, 12, 12, 12, 12, 12},
	{11, 11, 11, 11, 12, 12, 12, 12, 12, 12, 12, 12},
	{12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12},
}

// clamp returns v limited to [lo,hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TableA returns the posture score for the neck, trunk and leg group.
// Out-of-range inputs are clamped to the table bounds.
func TableA(trunk, neck, leg int) int {
	return tableA[clamp(trunk, 1, 5)-1][clamp(neck, 1, 3)-1][clamp(leg, 1, 4)-1]
}

// TableB returns the posture score for the arm and wrist group.
// Out-of-range inputs are clamped to the table bounds.
func TableB(upperArm, forearm, wrist int) int {
	return tableB[clamp(upperArm, 1, 6)-1][clamp(forearm, 1, 2)-1][clamp(wrist, 1, 3)-1]
}

// TableC combines Score A and Score B. Out-of-range inputs are clamped.
func TableC(scoreA, scoreB int) int {
	return tableC[clamp(scoreA, 1, 12)-1][clamp(scoreB, 1, 12)-1]
}

// TableCMatrix returns a copy of Table C for display.
func TableCMatrix() [12][12]int {
	return tableC
}
