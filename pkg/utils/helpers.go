package utils

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"

	"gorm.io/datatypes"
)

// CalculateMD5 computes the MD5 hash of a byte slice.
func CalculateMD5(data []byte) string {
	hasher := md5.New()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// ToJSON 将任意值序列化为 datatypes.JSON，失败时返回 "null"
func ToJSON(v any) datatypes.JSON {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(jsonBytes)
}

// Round2 保留两位小数。按浮点数的精确十进制值取整，恰好一半时取偶数，
// 与 Python round(x, 2) 结果一致。
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	v, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	return v
}
