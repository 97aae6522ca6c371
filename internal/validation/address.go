// Package validation содержит функции валидации входных данных.
package validation

import (
	"unicode"

	"github.com/mmeshcher/searchable-system/internal/model"
)

// IsValidAddress проверяет корректность адреса получателя для валюты
// вывода: для usdt — адрес в сети ethereum, для usd — номер банковского
// счёта с контрольной суммой Луна.
func IsValidAddress(currency model.Currency, address string) bool {
	switch currency {
	case model.CurrencyUSDT:
		return isValidEthereumAddress(address)
	case model.CurrencyUSD:
		return IsValidAccountNumber(address)
	}
	return false
}

func isValidEthereumAddress(address string) bool {
	if len(address) != 42 {
		return false
	}
	if address[0] != '0' || (address[1] != 'x' && address[1] != 'X') {
		return false
	}
	for _, ch := range address[2:] {
		if !isHexDigit(ch) {
			return false
		}
	}
	return true
}

func isHexDigit(ch rune) bool {
	return (ch >= '0' && ch <= '9') ||
		(ch >= 'a' && ch <= 'f') ||
		(ch >= 'A' && ch <= 'F')
}

// IsValidAccountNumber проверяет корректность номера счёта по алгоритму Луна.
func IsValidAccountNumber(number string) bool {
	if number == "" {
		return false
	}

	sum := 0
	double := false

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}
